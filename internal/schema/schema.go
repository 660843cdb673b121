// Package schema describes the console's entities as data: their endpoints, list envelopes,
// table columns and form fields. The resource manager is instantiated from these values.
package schema

import (
	"fmt"
	"strings"

	"github.com/noah-isme/campus-admin-console/internal/models"
)

// FieldKind selects input coercion and rendering for a form field.
type FieldKind string

const (
	KindText        FieldKind = "text"
	KindTextarea    FieldKind = "textarea"
	KindEmail       FieldKind = "email"
	KindNumber      FieldKind = "number"
	KindInteger     FieldKind = "integer"
	KindSelect      FieldKind = "select"
	KindBool        FieldKind = "bool"
	KindDate        FieldKind = "date"
	KindReference   FieldKind = "reference"
	KindReferences  FieldKind = "references"
	KindMultiSelect FieldKind = "multiselect"
)

// Option is a fixed choice for select fields.
type Option struct {
	Value string `json:"value"`
	Label string
}

// Field is one input of the edit form.
type Field struct {
	Name  string
	Label string
	Kind  FieldKind
	// Rules are validator tags, e.g. "required,min=2,max=100" or "required,course_code".
	Rules       string
	Options     []Option
	Ref         string
	DiffersFrom string
	Placeholder string
	Default     any
	// CreateOnly fields are shown when creating and left untouched on update.
	CreateOnly bool
}

// Required reports whether the field must be filled.
func (f Field) Required() bool {
	for _, rule := range strings.Split(f.Rules, ",") {
		if strings.TrimSpace(rule) == "required" {
			return true
		}
	}
	return false
}

// IsReference reports whether options come from another entity.
func (f Field) IsReference() bool {
	return f.Kind == KindReference || f.Kind == KindReferences
}

// Multiple reports whether the field holds a list of values.
func (f Field) Multiple() bool {
	return f.Kind == KindReferences || f.Kind == KindMultiSelect
}

// ActivityStyle tells how an entity encodes its activity flag.
type ActivityStyle int

const (
	// ActivityBool is a boolean field such as is_active.
	ActivityBool ActivityStyle = iota
	// ActivityStatus is an enum field such as status = active|inactive.
	ActivityStatus
)

// Activity locates the activity flag of an entity.
type Activity struct {
	Field         string
	Style         ActivityStyle
	ActiveValue   string
	InactiveValue string
}

// Column is one table column of the list view.
type Column struct {
	Field string `json:"field"`
	Label string
}

// Schema parameterises the resource manager for one entity type.
type Schema struct {
	Name     string
	Title    string
	Singular string
	// Endpoint is the path below the upstream base URL, e.g. /api/course.
	Endpoint   string
	IDField    string
	LabelField string
	Activity   Activity
	// ListKeys are dotted paths tried in order to find the item array of a list response.
	ListKeys []string
	Columns  []Column
	Fields   []Field
}

// Field looks up a form field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ID returns the identifier of rec.
func (s Schema) ID(rec models.Record) string {
	return rec.ID(s.idField())
}

// Label returns the display name of rec, falling back to its id.
func (s Schema) Label(rec models.Record) string {
	if s.LabelField != "" {
		if label := rec.Text(s.LabelField); label != "" {
			return label
		}
	}
	return s.ID(rec)
}

// IsActive interprets the activity flag of rec.
func (s Schema) IsActive(rec models.Record) bool {
	if s.Activity.Field == "" {
		return true
	}
	if s.Activity.Style == ActivityStatus {
		return strings.EqualFold(rec.Text(s.Activity.Field), s.Activity.ActiveValue)
	}
	return rec.Bool(s.Activity.Field)
}

// HasActivity reports whether the entity supports activate/deactivate.
func (s Schema) HasActivity() bool {
	return s.Activity.Field != ""
}

func (s Schema) idField() string {
	if s.IDField == "" {
		return "id"
	}
	return s.IDField
}

// Validate checks the schema for wiring mistakes.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name required")
	}
	if !strings.HasPrefix(s.Endpoint, "/") {
		return fmt.Errorf("schema %s: endpoint must start with /", s.Name)
	}
	if len(s.ListKeys) == 0 {
		return fmt.Errorf("schema %s: at least one list key required", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field without name", s.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %s", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.IsReference() && f.Ref == "" {
			return fmt.Errorf("schema %s: reference field %s missing target", s.Name, f.Name)
		}
		if f.Kind == KindSelect && len(f.Options) == 0 {
			return fmt.Errorf("schema %s: select field %s has no options", s.Name, f.Name)
		}
	}
	for _, f := range s.Fields {
		if f.DiffersFrom == "" {
			continue
		}
		if _, ok := seen[f.DiffersFrom]; !ok {
			return fmt.Errorf("schema %s: field %s differs from unknown field %s", s.Name, f.Name, f.DiffersFrom)
		}
	}
	return nil
}
