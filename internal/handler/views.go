package handler

import (
	"fmt"

	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
)

var pageSizeChoices = []int{10, 25, 50, 100}

type pageBase struct {
	Title    string
	Active   string
	Session  *models.Session
	Entities []schema.Schema
	Notices  []models.Notice
}

type loginPage struct {
	pageBase
	Next  string
	Error string
}

type errorPage struct {
	pageBase
	Message string
}

type rowView struct {
	ID     string
	Active bool
	Cells  []string
}

type listPage struct {
	pageBase
	Schema      schema.Schema
	Columns     []schema.Column
	Rows        []rowView
	Query       models.ListQuery
	State       string
	Total       int
	TotalPages  int
	PrevPage    int
	NextPage    int
	PageSizes   []int
	ColumnSpan  int
	HasActivity bool
	Form        *formView
	Confirm     *confirmView
}

type fieldView struct {
	Name        string
	Label       string
	Kind        string
	Required    bool
	Disabled    bool
	Value       string
	Checked     bool
	Placeholder string
	Options     []schema.Option
	Selected    map[string]bool
	Error       string
}

type formView struct {
	Title      string
	Action     string
	Submitting bool
	Fields     []fieldView
}

type confirmView struct {
	Title        string
	Body         string
	ConfirmLabel string
	Danger       bool
	Loading      bool
	Action       string
	CancelAction string
}

func buildRows(sch schema.Schema, rows []models.Record) []rowView {
	out := make([]rowView, 0, len(rows))
	for _, rec := range rows {
		cells := make([]string, 0, len(sch.Columns))
		for _, col := range sch.Columns {
			cells = append(cells, rec.Text(col.Field))
		}
		out = append(out, rowView{ID: sch.ID(rec), Active: sch.IsActive(rec), Cells: cells})
	}
	return out
}

func buildListPage(base pageBase, sch schema.Schema, snap manager.ListSnapshot) listPage {
	page := listPage{
		pageBase:    base,
		Schema:      sch,
		Columns:     sch.Columns,
		Rows:        buildRows(sch, snap.Rows),
		Query:       snap.Query,
		State:       string(snap.State),
		Total:       snap.Total,
		TotalPages:  snap.TotalPages,
		PageSizes:   pageSizeChoices,
		ColumnSpan:  len(sch.Columns) + 1,
		HasActivity: sch.HasActivity(),
	}
	if page.TotalPages < 1 {
		page.TotalPages = 1
	}
	if snap.Query.Page > 1 {
		page.PrevPage = snap.Query.Page - 1
	}
	if snap.Query.Page < page.TotalPages {
		page.NextPage = snap.Query.Page + 1
	}
	return page
}

func buildFormView(sch schema.Schema, snap manager.FormSnapshot, options map[string][]schema.Option) *formView {
	if !snap.Open {
		return nil
	}
	view := &formView{
		Title:      fmt.Sprintf("New %s", sch.Singular),
		Action:     "/admin/" + sch.Name + "/form",
		Submitting: snap.Submitting,
	}
	if snap.Mode == manager.ModeEdit {
		view.Title = fmt.Sprintf("Edit %s", sch.Singular)
	}
	for _, field := range sch.Fields {
		value := snap.Values[field.Name]
		fv := fieldView{
			Name:        field.Name,
			Label:       field.Label,
			Kind:        inputKind(field.Kind),
			Required:    field.Required(),
			Disabled:    field.CreateOnly && snap.Mode == manager.ModeEdit,
			Placeholder: field.Placeholder,
			Options:     options[field.Name],
			Selected:    map[string]bool{},
			Error:       snap.Errors[field.Name],
		}
		switch {
		case field.Multiple():
			values, _ := value.([]string)
			for _, v := range values {
				fv.Selected[v] = true
			}
		case field.Kind == schema.KindBool:
			fv.Checked, _ = value.(bool)
		default:
			fv.Value = models.Scalar(value)
			if fv.Value != "" {
				fv.Selected[fv.Value] = true
			}
		}
		view.Fields = append(view.Fields, fv)
	}
	return view
}

func buildConfirmView(sch schema.Schema, req manager.ConfirmRequest) *confirmView {
	if !req.Open() {
		return nil
	}
	return &confirmView{
		Title:        req.Title,
		Body:         req.Body,
		ConfirmLabel: req.ConfirmLabel,
		Danger:       req.Danger,
		Loading:      req.Loading,
		Action:       "/admin/" + sch.Name + "/confirm",
		CancelAction: "/admin/" + sch.Name + "/cancel",
	}
}

func inputKind(kind schema.FieldKind) string {
	switch kind {
	case schema.KindTextarea:
		return "textarea"
	case schema.KindEmail:
		return "email"
	case schema.KindNumber, schema.KindInteger:
		return "number"
	case schema.KindDate:
		return "date"
	case schema.KindSelect, schema.KindReference:
		return "select"
	case schema.KindReferences, schema.KindMultiSelect:
		return "multiple"
	case schema.KindBool:
		return "checkbox"
	default:
		return "text"
	}
}
