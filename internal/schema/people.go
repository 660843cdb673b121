package schema

// Stream is a cohort section within a program.
func Stream() Schema {
	return Schema{
		Name:       "stream",
		Title:      "Streams",
		Singular:   "Stream",
		Endpoint:   "/api/stream",
		LabelField: "name",
		Activity:   Activity{Field: "is_active", Style: ActivityBool},
		ListKeys:   []string{"streams", "data.streams", "data", "items"},
		Columns: []Column{
			{Field: "name", Label: "Name"},
			{Field: "program", Label: "Program"},
			{Field: "intake_year", Label: "Intake"},
			{Field: "capacity", Label: "Capacity"},
			{Field: "is_active", Label: "Active"},
		},
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindText, Rules: "required,min=1,max=60", Placeholder: "Morning A"},
			{Name: "program_id", Label: "Program", Kind: KindReference, Ref: "program", Rules: "required"},
			{Name: "intake_year", Label: "Intake year", Kind: KindInteger, Rules: "required,gte=2000,lte=2100"},
			{Name: "capacity", Label: "Capacity", Kind: KindInteger, Rules: "required,gte=1,lte=500", Default: 40},
		},
	}
}

// Student is an enrolled learner.
func Student() Schema {
	return Schema{
		Name:       "student",
		Title:      "Students",
		Singular:   "Student",
		Endpoint:   "/api/student",
		LabelField: "full_name",
		Activity:   Activity{Field: "is_active", Style: ActivityBool},
		ListKeys:   []string{"students", "data.students", "data", "items"},
		Columns: []Column{
			{Field: "registration_no", Label: "Reg. no"},
			{Field: "full_name", Label: "Name"},
			{Field: "email", Label: "Email"},
			{Field: "program", Label: "Program"},
			{Field: "stream", Label: "Stream"},
			{Field: "is_active", Label: "Active"},
		},
		Fields: []Field{
			{Name: "registration_no", Label: "Registration number", Kind: KindText, Rules: "required,reg_no", CreateOnly: true},
			{Name: "full_name", Label: "Full name", Kind: KindText, Rules: "required,min=3,max=120"},
			{Name: "email", Label: "Email", Kind: KindEmail, Rules: "required,email"},
			{Name: "phone", Label: "Phone", Kind: KindText, Rules: "phone"},
			{Name: "date_of_birth", Label: "Date of birth", Kind: KindDate, Rules: "datetime=2006-01-02"},
			{Name: "gender", Label: "Gender", Kind: KindSelect, Options: []Option{
				{Value: "female", Label: "Female"},
				{Value: "male", Label: "Male"},
				{Value: "other", Label: "Other"},
			}},
			{Name: "program_id", Label: "Program", Kind: KindReference, Ref: "program", Rules: "required"},
			{Name: "stream_id", Label: "Stream", Kind: KindReference, Ref: "stream"},
		},
	}
}

// Teacher is a member of academic staff.
func Teacher() Schema {
	return Schema{
		Name:       "teacher",
		Title:      "Teachers",
		Singular:   "Teacher",
		Endpoint:   "/api/teacher",
		LabelField: "full_name",
		Activity:   Activity{Field: "is_active", Style: ActivityBool},
		ListKeys:   []string{"teachers", "data.teachers", "data", "items"},
		Columns: []Column{
			{Field: "employee_no", Label: "Employee no"},
			{Field: "full_name", Label: "Name"},
			{Field: "email", Label: "Email"},
			{Field: "designation", Label: "Designation"},
			{Field: "department", Label: "Department"},
			{Field: "is_active", Label: "Active"},
		},
		Fields: []Field{
			{Name: "employee_no", Label: "Employee number", Kind: KindText, Rules: "required,reg_no", CreateOnly: true},
			{Name: "full_name", Label: "Full name", Kind: KindText, Rules: "required,min=3,max=120"},
			{Name: "email", Label: "Email", Kind: KindEmail, Rules: "required,email"},
			{Name: "phone", Label: "Phone", Kind: KindText, Rules: "phone"},
			{Name: "designation", Label: "Designation", Kind: KindSelect, Rules: "required", Options: []Option{
				{Value: "lecturer", Label: "Lecturer"},
				{Value: "senior_lecturer", Label: "Senior Lecturer"},
				{Value: "assistant_professor", Label: "Assistant Professor"},
				{Value: "associate_professor", Label: "Associate Professor"},
				{Value: "professor", Label: "Professor"},
			}},
			{Name: "department_id", Label: "Department", Kind: KindReference, Ref: "department", Rules: "required"},
			{Name: "specializations", Label: "Specializations", Kind: KindMultiSelect, Options: []Option{
				{Value: "research", Label: "Research"},
				{Value: "teaching", Label: "Teaching"},
				{Value: "advising", Label: "Advising"},
				{Value: "administration", Label: "Administration"},
			}},
		},
	}
}
