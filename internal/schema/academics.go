package schema

var statusOptions = []Option{
	{Value: "active", Label: "Active"},
	{Value: "inactive", Label: "Inactive"},
}

// Department is an academic department.
func Department() Schema {
	return Schema{
		Name:       "department",
		Title:      "Departments",
		Singular:   "Department",
		Endpoint:   "/api/department",
		LabelField: "name",
		Activity:   Activity{Field: "is_active", Style: ActivityBool},
		ListKeys:   []string{"departments", "data.departments", "data", "items"},
		Columns: []Column{
			{Field: "code", Label: "Code"},
			{Field: "name", Label: "Name"},
			{Field: "head_of_department", Label: "Head"},
			{Field: "is_active", Label: "Active"},
		},
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindText, Rules: "required,min=2,max=100", Placeholder: "Biology"},
			{Name: "code", Label: "Code", Kind: KindText, Rules: "required,dept_code", Placeholder: "BIO"},
			{Name: "head_of_department", Label: "Head of department", Kind: KindText, Rules: "max=100"},
			{Name: "description", Label: "Description", Kind: KindTextarea, Rules: "max=500"},
		},
	}
}

// Program is a degree program offered by a department.
func Program() Schema {
	return Schema{
		Name:       "program",
		Title:      "Programs",
		Singular:   "Program",
		Endpoint:   "/api/program",
		LabelField: "name",
		Activity:   Activity{Field: "is_active", Style: ActivityBool},
		ListKeys:   []string{"programs", "data.programs", "data", "items"},
		Columns: []Column{
			{Field: "code", Label: "Code"},
			{Field: "name", Label: "Name"},
			{Field: "department", Label: "Department"},
			{Field: "degree_level", Label: "Level"},
			{Field: "duration_years", Label: "Years"},
			{Field: "is_active", Label: "Active"},
		},
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindText, Rules: "required,min=3,max=150"},
			{Name: "code", Label: "Code", Kind: KindText, Rules: "required,program_code", Placeholder: "BSC-CS"},
			{Name: "department_id", Label: "Department", Kind: KindReference, Ref: "department", Rules: "required"},
			{Name: "degree_level", Label: "Degree level", Kind: KindSelect, Rules: "required", Options: []Option{
				{Value: "diploma", Label: "Diploma"},
				{Value: "bachelor", Label: "Bachelor"},
				{Value: "master", Label: "Master"},
				{Value: "doctorate", Label: "Doctorate"},
			}},
			{Name: "duration_years", Label: "Duration (years)", Kind: KindInteger, Rules: "required,gte=1,lte=8", Default: 4},
		},
	}
}

// Course is a unit of study taught within one or more programs.
func Course() Schema {
	return Schema{
		Name:       "course",
		Title:      "Courses",
		Singular:   "Course",
		Endpoint:   "/api/course",
		LabelField: "title",
		Activity:   Activity{Field: "status", Style: ActivityStatus, ActiveValue: "active", InactiveValue: "inactive"},
		ListKeys:   []string{"courses", "data.courses", "data", "items"},
		Columns: []Column{
			{Field: "course_code", Label: "Code"},
			{Field: "title", Label: "Title"},
			{Field: "credit_hours", Label: "Credits"},
			{Field: "programs", Label: "Programs"},
			{Field: "status", Label: "Status"},
		},
		Fields: []Field{
			{Name: "course_code", Label: "Course code", Kind: KindText, Rules: "required,course_code", Placeholder: "CS-101"},
			{Name: "title", Label: "Title", Kind: KindText, Rules: "required,min=3,max=150"},
			{Name: "credit_hours", Label: "Credit hours", Kind: KindInteger, Rules: "required,gte=1,lte=6", Default: 3},
			{Name: "program_ids", Label: "Programs", Kind: KindReferences, Ref: "program", Rules: "required,min=1"},
			{Name: "description", Label: "Description", Kind: KindTextarea, Rules: "max=1000"},
			{Name: "status", Label: "Status", Kind: KindSelect, Rules: "required", Options: statusOptions, Default: "active"},
		},
	}
}

// Prerequisite links a course to a course that must be completed first.
func Prerequisite() Schema {
	return Schema{
		Name:       "prerequisite",
		Title:      "Prerequisites",
		Singular:   "Prerequisite",
		Endpoint:   "/api/prerequisite",
		LabelField: "course",
		ListKeys:   []string{"prerequisites", "data.prerequisites", "data", "items"},
		Columns: []Column{
			{Field: "course", Label: "Course"},
			{Field: "prerequisite_course", Label: "Requires"},
			{Field: "minimum_grade", Label: "Minimum grade"},
		},
		Fields: []Field{
			{Name: "course_id", Label: "Course", Kind: KindReference, Ref: "course", Rules: "required"},
			{Name: "prerequisite_course_id", Label: "Prerequisite course", Kind: KindReference, Ref: "course", Rules: "required", DiffersFrom: "course_id"},
			{Name: "minimum_grade", Label: "Minimum grade", Kind: KindSelect, Options: []Option{
				{Value: "A", Label: "A"},
				{Value: "B", Label: "B"},
				{Value: "C", Label: "C"},
				{Value: "D", Label: "D"},
			}},
		},
	}
}
