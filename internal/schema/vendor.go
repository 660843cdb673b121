package schema

// Vendor is an external supplier of campus services.
func Vendor() Schema {
	return Schema{
		Name:       "vendor",
		Title:      "Vendors",
		Singular:   "Vendor",
		Endpoint:   "/api/vendor",
		LabelField: "name",
		Activity:   Activity{Field: "status", Style: ActivityStatus, ActiveValue: "active", InactiveValue: "inactive"},
		ListKeys:   []string{"vendors", "data.vendors", "data", "items"},
		Columns: []Column{
			{Field: "name", Label: "Name"},
			{Field: "service_type", Label: "Service"},
			{Field: "contact_person", Label: "Contact"},
			{Field: "phone", Label: "Phone"},
			{Field: "status", Label: "Status"},
		},
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindText, Rules: "required,min=2,max=120"},
			{Name: "service_type", Label: "Service type", Kind: KindSelect, Rules: "required", Options: []Option{
				{Value: "catering", Label: "Catering"},
				{Value: "transport", Label: "Transport"},
				{Value: "stationery", Label: "Stationery"},
				{Value: "maintenance", Label: "Maintenance"},
				{Value: "it_services", Label: "IT services"},
			}},
			{Name: "contact_person", Label: "Contact person", Kind: KindText, Rules: "required,max=120"},
			{Name: "email", Label: "Email", Kind: KindEmail, Rules: "required,email"},
			{Name: "phone", Label: "Phone", Kind: KindText, Rules: "required,phone"},
			{Name: "contract_value", Label: "Contract value", Kind: KindNumber, Rules: "gte=0"},
			{Name: "status", Label: "Status", Kind: KindSelect, Rules: "required", Options: statusOptions, Default: "active"},
		},
	}
}
