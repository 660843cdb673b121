package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
)

type workspaceProvider interface {
	Manager(session *models.Session, entity string) (*manager.Manager, error)
}

type runner struct {
	workspaces workspaceProvider
	session    *models.Session
	out        io.Writer
}

// assignments collects repeated -set name=value flags.
type assignments map[string]any

func (a assignments) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (a assignments) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", raw)
	}
	a[name] = value
	return nil
}

func (r *runner) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return r.list(ctx, args)
	case "create":
		return r.save(ctx, args, false)
	case "update":
		return r.save(ctx, args, true)
	case "delete", "activate", "deactivate":
		action, _ := models.ParseAction(cmd)
		return r.perform(ctx, action, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (r *runner) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	search := fs.String("search", "", "search term")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", 0, "rows per page")
	entity, rest, err := entityArg(args)
	if err != nil {
		return err
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	m, err := r.workspaces.Manager(r.session, entity)
	if err != nil {
		return err
	}
	if err := m.Query(ctx, models.ListQuery{Search: *search, Page: *page, PageSize: *pageSize}); err != nil {
		return err
	}
	printList(r.out, m.Schema(), m.List())
	r.flush(m)
	return nil
}

func (r *runner) save(ctx context.Context, args []string, edit bool) error {
	entity, rest, err := entityArg(args)
	if err != nil {
		return err
	}
	var id string
	if edit {
		if len(rest) == 0 || strings.HasPrefix(rest[0], "-") {
			return errors.New("missing record id")
		}
		id, rest = rest[0], rest[1:]
	}
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	values := assignments{}
	fs.Var(values, "set", "field assignment name=value, repeatable")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	m, err := r.workspaces.Manager(r.session, entity)
	if err != nil {
		return err
	}
	if edit {
		if err := r.openEdit(ctx, m, id, values); err != nil {
			return err
		}
	} else {
		m.OpenCreate()
	}
	if err := m.SetFields(values); err != nil {
		return err
	}
	if err := m.Submit(ctx); err != nil {
		var validationErr *manager.ValidationError
		if errors.As(err, &validationErr) {
			for _, name := range sortedKeys(validationErr.Fields) {
				fmt.Fprintf(r.out, "  %s: %s\n", name, validationErr.Fields[name])
			}
		}
		r.flush(m)
		return err
	}
	r.flush(m)
	printRecord(r.out, m.Schema(), m.Saved())
	return nil
}

// openEdit loads the record's page when it can be found by id and otherwise edits from the
// assignments alone.
func (r *runner) openEdit(ctx context.Context, m *manager.Manager, id string, values assignments) error {
	if err := m.Query(ctx, models.ListQuery{Search: id, Page: 1}); err == nil {
		if err := m.OpenEdit(id); err == nil {
			return nil
		}
	}
	rec := models.Record{}
	for k, v := range values {
		rec[k] = v
	}
	idField := m.Schema().IDField
	if idField == "" {
		idField = "id"
	}
	rec[idField] = id
	return m.OpenEditRecord(rec)
}

func (r *runner) perform(ctx context.Context, action models.Action, args []string) error {
	entity, rest, err := entityArg(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errors.New("missing record id")
	}
	m, err := r.workspaces.Manager(r.session, entity)
	if err != nil {
		return err
	}
	if err := m.RequestAction(action, rest[0]); err != nil {
		return err
	}
	err = m.Confirm(ctx)
	r.flush(m)
	return err
}

func (r *runner) flush(m *manager.Manager) {
	for _, n := range m.Notices() {
		fmt.Fprintf(r.out, "[%s] %s\n", n.Level, n.Message)
	}
}

func entityArg(args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, errors.New("missing entity")
	}
	return args[0], args[1:], nil
}

func printEntities(w io.Writer, registry *schema.Registry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tSTATUS ACTIONS")
	for _, sch := range registry.All() {
		status := "no"
		if sch.HasActivity() {
			status = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sch.Name, sch.Title, status)
	}
	_ = tw.Flush()
}

func printList(w io.Writer, sch schema.Schema, snap manager.ListSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"ID"}
	for _, col := range sch.Columns {
		header = append(header, strings.ToUpper(col.Label))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range snap.Rows {
		cells := []string{sch.ID(rec)}
		for _, col := range sch.Columns {
			cells = append(cells, rec.Text(col.Field))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d total, page %d of %d\n", snap.Total, snap.Query.Page, snap.TotalPages)
}

func printRecord(w io.Writer, sch schema.Schema, rec models.Record) {
	if rec == nil {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", sch.ID(rec))
	for _, f := range sch.Fields {
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, rec.Text(f.Name))
	}
	_ = tw.Flush()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
