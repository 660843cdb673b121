package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/validator"
)

// RequiredFieldsMessage is the notice shown when a submit fails validation.
const RequiredFieldsMessage = "Please fill in all required fields"

var (
	// ErrBusy is returned when a submit or confirm is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrFormClosed is returned when submitting a form that is not open.
	ErrFormClosed = errors.New("form is not open")
	// ErrUnknownField is returned when setting a field the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
)

// ValidationError carries per-field messages from a rejected submit.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// FormMode tells whether the form creates or updates a record.
type FormMode string

const (
	ModeCreate FormMode = "create"
	ModeEdit   FormMode = "edit"
)

// FormSnapshot is a copy of the form state safe to render.
type FormSnapshot struct {
	Open       bool
	Mode       FormMode
	TargetID   string
	Values     models.Record
	Errors     map[string]string
	Submitting bool
}

// SubmitFunc receives the validated payload.
type SubmitFunc func(ctx context.Context, mode FormMode, id string, payload models.Record) error

// EditForm is the schema driven create/update form.
type EditForm struct {
	mu     sync.Mutex
	schema schema.Schema
	engine *validator.Engine

	open       bool
	mode       FormMode
	targetID   string
	values     models.Record
	errors     map[string]string
	submitting bool
	// generation changes on every Open and Close so a late submit result can tell the
	// form it started from has gone.
	generation uint64
}

// NewEditForm creates a closed form for s.
func NewEditForm(s schema.Schema, engine *validator.Engine) *EditForm {
	if engine == nil {
		engine = validator.New()
	}
	return &EditForm{schema: s, engine: engine, values: models.Record{}, errors: map[string]string{}}
}

// Open resets every field to its default, then pre-fills from initial. A nil initial opens
// the form in create mode. A submit still in flight keeps the form busy until it returns.
func (f *EditForm) Open(initial models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.generation++
	f.values = f.defaults()
	f.errors = map[string]string{}
	f.open = true
	f.mode = ModeCreate
	f.targetID = ""
	if initial == nil {
		return
	}

	f.mode = ModeEdit
	f.targetID = f.schema.ID(initial)
	for _, field := range f.schema.Fields {
		if v, ok := prefill(field, initial); ok {
			f.values[field.Name] = v
		}
	}
}

// Close discards the form state.
func (f *EditForm) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.reset()
}

// reset must be called with f.mu held.
func (f *EditForm) reset() {
	f.open = false
	f.values = models.Record{}
	f.errors = map[string]string{}
	f.targetID = ""
}

// Set stores raw input for a field, coerced by the field's kind. raw may be a string, a slice
// of strings or an already typed value.
func (f *EditForm) Set(name string, raw any) error {
	field, ok := f.schema.Field(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = coerce(field, raw)
	delete(f.errors, name)
	return nil
}

// SetAll applies a batch of raw inputs. Unknown fields are skipped and reported.
func (f *EditForm) SetAll(raw map[string]any) error {
	var firstErr error
	for name, value := range raw {
		if err := f.Set(name, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Snapshot copies the form state.
func (f *EditForm) Snapshot() FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		errs[k] = v
	}
	return FormSnapshot{
		Open:       f.open,
		Mode:       f.mode,
		TargetID:   f.targetID,
		Values:     f.values.Clone(),
		Errors:     errs,
		Submitting: f.submitting,
	}
}

// Submit validates the form and hands the payload to fn. Invalid input returns a
// *ValidationError without calling fn. When fn succeeds the form closes, unless it was
// closed or reopened while fn ran. Reloading is left to the caller.
func (f *EditForm) Submit(ctx context.Context, fn SubmitFunc) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return ErrFormClosed
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrBusy
	}
	payload, errs := f.validate()
	f.errors = errs
	if len(errs) > 0 {
		f.mu.Unlock()
		fields := make(map[string]string, len(errs))
		for k, v := range errs {
			fields[k] = v
		}
		return &ValidationError{Fields: fields}
	}
	f.submitting = true
	mode, id, gen := f.mode, f.targetID, f.generation
	f.mu.Unlock()

	err := fn(ctx, mode, id, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err == nil && gen == f.generation {
		f.generation++
		f.reset()
	}
	return err
}

// validate must be called with f.mu held.
func (f *EditForm) validate() (models.Record, map[string]string) {
	errs := map[string]string{}
	payload := models.Record{}

	for _, field := range f.schema.Fields {
		if field.CreateOnly && f.mode == ModeEdit {
			continue
		}
		value := f.values[field.Name]

		if msg, ok := f.checkKind(field, value); !ok {
			errs[field.Name] = msg
			continue
		}
		if msg, ok := f.engine.Check(field.Label, value, field.Rules); !ok {
			errs[field.Name] = msg
			continue
		}
		if field.DiffersFrom != "" && !validator.IsEmpty(value) {
			other, _ := f.schema.Field(field.DiffersFrom)
			if models.Scalar(value) == models.Scalar(f.values[field.DiffersFrom]) {
				errs[field.Name] = f.engine.Message(validator.KeyDiffers, field.Label, other.Label)
				continue
			}
		}

		if validator.IsEmpty(value) {
			if f.mode == ModeEdit {
				payload[field.Name] = emptyValue(field)
			}
			continue
		}
		payload[field.Name] = value
	}
	return payload, errs
}

func (f *EditForm) checkKind(field schema.Field, value any) (string, bool) {
	if validator.IsEmpty(value) {
		return "", true
	}
	switch field.Kind {
	case schema.KindNumber, schema.KindInteger:
		raw, isString := value.(string)
		if !isString {
			break
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && field.Kind == schema.KindInteger {
			return f.engine.Message(validator.KeyWholeNumber, field.Label), false
		}
		return f.engine.Message(validator.KeyNumber, field.Label), false
	case schema.KindSelect:
		if !hasOption(field.Options, models.Scalar(value)) {
			return f.engine.Message(validator.KeyOneOf, field.Label, optionList(field.Options)), false
		}
	case schema.KindMultiSelect:
		values, _ := value.([]string)
		for _, v := range values {
			if !hasOption(field.Options, v) {
				return f.engine.Message(validator.KeyOneOf, field.Label, optionList(field.Options)), false
			}
		}
	}
	return "", true
}

func (f *EditForm) defaults() models.Record {
	values := models.Record{}
	for _, field := range f.schema.Fields {
		switch {
		case field.Default != nil:
			values[field.Name] = coerce(field, field.Default)
		case field.Multiple():
			values[field.Name] = []string{}
		case field.Kind == schema.KindBool:
			values[field.Name] = false
		default:
			values[field.Name] = nil
		}
	}
	return values
}

func emptyValue(field schema.Field) any {
	if field.Multiple() {
		return []string{}
	}
	return nil
}

// prefill reads a field from a record, following nested references such as
// department: {id, name} for department_id and programs: [{id}] for program_ids.
func prefill(field schema.Field, rec models.Record) (any, bool) {
	if v, ok := rec[field.Name]; ok && v != nil {
		return coerce(field, v), true
	}
	switch {
	case field.Kind == schema.KindReferences && strings.HasSuffix(field.Name, "_ids"):
		nested, ok := rec[strings.TrimSuffix(field.Name, "_ids")+"s"]
		if !ok {
			return nil, false
		}
		items, ok := nested.([]any)
		if !ok {
			return nil, false
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				ids = append(ids, models.Scalar(obj["id"]))
				continue
			}
			ids = append(ids, models.Scalar(item))
		}
		return ids, true
	case field.Kind == schema.KindReference && strings.HasSuffix(field.Name, "_id"):
		nested, ok := rec[strings.TrimSuffix(field.Name, "_id")].(map[string]any)
		if !ok {
			return nil, false
		}
		return models.Scalar(nested["id"]), true
	}
	return nil, false
}

// coerce converts raw input into the value type of the field kind. Unparseable numbers are
// kept as strings so validation can report them.
func coerce(field schema.Field, raw any) any {
	if field.Multiple() {
		return toStrings(raw)
	}
	if values, ok := raw.([]string); ok {
		if len(values) == 0 {
			raw = ""
		} else {
			raw = values[len(values)-1]
		}
	}

	switch field.Kind {
	case schema.KindBool:
		switch v := raw.(type) {
		case bool:
			return v
		case nil:
			return false
		default:
			s := strings.ToLower(strings.TrimSpace(models.Scalar(v)))
			return s == "on" || s == "true" || s == "1" || s == "yes"
		}
	case schema.KindInteger:
		s := strings.TrimSpace(models.Scalar(raw))
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if fl, ferr := strconv.ParseFloat(s, 64); ferr == nil && fl == float64(int64(fl)) {
				return int64(fl)
			}
			return s
		}
		return n
	case schema.KindNumber:
		s := strings.TrimSpace(models.Scalar(raw))
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		return n
	case schema.KindDate:
		s := strings.TrimSpace(models.Scalar(raw))
		if len(s) > 10 && s[10] == 'T' {
			s = s[:10]
		}
		if s == "" {
			return nil
		}
		return s
	default:
		s := strings.TrimSpace(models.Scalar(raw))
		if s == "" {
			return nil
		}
		return s
	}
}

func toStrings(raw any) []string {
	out := []string{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	switch v := raw.(type) {
	case nil:
	case []string:
		for _, s := range v {
			add(s)
		}
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				add(models.Scalar(obj["id"]))
				continue
			}
			add(models.Scalar(item))
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	case json.Number:
		add(v.String())
	default:
		add(models.Scalar(v))
	}
	return out
}

func hasOption(options []schema.Option, value string) bool {
	for _, o := range options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func optionList(options []schema.Option) string {
	values := make([]string, 0, len(options))
	for _, o := range options {
		values = append(values, o.Value)
	}
	return strings.Join(values, ", ")
}
