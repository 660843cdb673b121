// Package manager implements the resource manager every console screen is built from: a
// paginated list, a schema driven edit form and a confirmation gate for status actions.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/validator"
)

// ErrRecordNotFound is returned when an id is not on the current page.
var ErrRecordNotFound = errors.New("record not on current page")

// ErrUnsupportedAction is returned for status actions an entity does not support.
var ErrUnsupportedAction = errors.New("action not supported for entity")

// Resource is the upstream surface a manager drives.
type Resource interface {
	List(ctx context.Context, query models.ListQuery) (models.ListResult[models.Record], error)
	Create(ctx context.Context, payload any) (models.Record, error)
	Update(ctx context.Context, id string, payload any) (models.Record, error)
	Remove(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// References resolves the resource and schema behind relational fields.
type References interface {
	Reference(entity string) (Resource, schema.Schema, bool)
}

// Mutation describes a finished create, update or status call.
type Mutation struct {
	Entity     string
	Operation  string
	ResourceID string
	Payload    models.Record
	Err        error
	Duration   time.Duration
}

// MutationObserver is notified after every mutation attempt.
type MutationObserver func(ctx context.Context, m Mutation)

// Option customises a Manager.
type Option func(*Manager)

// WithReferences enables relational select options.
func WithReferences(refs References) Option {
	return func(m *Manager) { m.refs = refs }
}

// WithValidator shares a validator engine.
func WithValidator(engine *validator.Engine) Option {
	return func(m *Manager) { m.engine = engine }
}

// WithPageSizes sets the default and maximum page size.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(m *Manager) {
		m.defaultSize = defaultSize
		m.maxSize = maxSize
	}
}

// WithObserver registers a mutation observer.
func WithObserver(obs MutationObserver) Option {
	return func(m *Manager) { m.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager composes list, form and confirm for one entity.
type Manager struct {
	schema   schema.Schema
	resource Resource
	refs     References
	engine   *validator.Engine
	observer MutationObserver
	logger   *zap.Logger

	defaultSize int
	maxSize     int

	list    *ListView
	form    *EditForm
	confirm *ConfirmModal

	mu      sync.Mutex
	notices []models.Notice
	saved   models.Record
	closed  atomic.Bool
}

// New builds a manager for s backed by resource.
func New(s schema.Schema, resource Resource, opts ...Option) *Manager {
	m := &Manager{
		schema:      s,
		resource:    resource,
		defaultSize: models.DefaultPageSize,
		maxSize:     models.MaxPageSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.engine == nil {
		m.engine = validator.New()
	}
	m.list = NewListView(resource.List, m.defaultSize, m.maxSize)
	m.form = NewEditForm(s, m.engine)
	m.confirm = NewConfirmModal()
	return m
}

// Schema returns the entity schema.
func (m *Manager) Schema() schema.Schema {
	return m.schema
}

// Load fetches the current page. Failures leave the previous rows and add an error notice.
func (m *Manager) Load(ctx context.Context) error {
	return m.afterList(ctx, m.list.Reload(ctx))
}

// Search reloads with term from the first page.
func (m *Manager) Search(ctx context.Context, term string) error {
	return m.afterList(ctx, m.list.SetSearch(ctx, term))
}

// SetPage reloads the given page.
func (m *Manager) SetPage(ctx context.Context, page int) error {
	return m.afterList(ctx, m.list.SetPage(ctx, page))
}

// SetPageSize reloads with a new page size.
func (m *Manager) SetPageSize(ctx context.Context, size int) error {
	return m.afterList(ctx, m.list.SetPageSize(ctx, size))
}

// Query reloads with a full query, resetting the page when the search term changed.
func (m *Manager) Query(ctx context.Context, query models.ListQuery) error {
	return m.afterList(ctx, m.list.Apply(ctx, query))
}

func (m *Manager) afterList(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrStale) || errors.Is(err, ErrClosed) {
		return nil
	}
	m.logger.Warn("list load failed", zap.String("entity", m.schema.Name), zap.Error(err))
	m.notify(ctx, models.NoticeError, client.UserMessage(err))
	return err
}

// List returns the list view state.
func (m *Manager) List() ListSnapshot {
	return m.list.Snapshot()
}

// OpenCreate opens a blank form.
func (m *Manager) OpenCreate() {
	m.form.Open(nil)
}

// OpenEdit opens the form pre-filled from the row with id on the current page.
func (m *Manager) OpenEdit(id string) error {
	row, ok := m.list.Find(id, m.schema.ID)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrRecordNotFound, m.schema.Name, id)
	}
	m.form.Open(row)
	return nil
}

// OpenEditRecord opens the form pre-filled from rec, which need not be on the current page.
func (m *Manager) OpenEditRecord(rec models.Record) error {
	if m.schema.ID(rec) == "" {
		return fmt.Errorf("%w: %s without id", ErrRecordNotFound, m.schema.Name)
	}
	m.form.Open(rec)
	return nil
}

// SetField stores raw form input.
func (m *Manager) SetField(name string, raw any) error {
	return m.form.Set(name, raw)
}

// SetFields stores a batch of raw form input.
func (m *Manager) SetFields(raw map[string]any) error {
	return m.form.SetAll(raw)
}

// Form returns the form state.
func (m *Manager) Form() FormSnapshot {
	return m.form.Snapshot()
}

// CloseForm discards the form.
func (m *Manager) CloseForm() {
	m.form.Close()
}

// Submit validates and saves the form. On success the form closes and the list reloads once.
// A form reopened while the save ran stays as the operator left it.
func (m *Manager) Submit(ctx context.Context) error {
	var (
		saved     bool
		savedMode FormMode
	)
	err := m.form.Submit(ctx, func(ctx context.Context, mode FormMode, id string, payload models.Record) error {
		savedMode = mode
		start := time.Now()
		op := models.AuditOpCreate
		var (
			rec models.Record
			err error
		)
		if mode == ModeEdit {
			op = models.AuditOpUpdate
			rec, err = m.resource.Update(ctx, id, payload)
		} else {
			rec, err = m.resource.Create(ctx, payload)
			if err == nil {
				id = m.schema.ID(rec)
			}
		}
		m.observe(ctx, Mutation{
			Entity:     m.schema.Name,
			Operation:  op,
			ResourceID: id,
			Payload:    payload,
			Err:        err,
			Duration:   time.Since(start),
		})
		if err != nil {
			return err
		}
		saved = true
		m.mu.Lock()
		m.saved = rec
		m.mu.Unlock()
		return nil
	})

	var validationErr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &validationErr):
		m.notify(ctx, models.NoticeError, RequiredFieldsMessage)
		return err
	case errors.Is(err, ErrBusy), errors.Is(err, ErrFormClosed):
		return err
	default:
		m.notify(ctx, models.NoticeError, client.UserMessage(err))
		return err
	}
	if !saved {
		return nil
	}

	verb := "created"
	if savedMode == ModeEdit {
		verb = "updated"
	}
	m.notify(ctx, models.NoticeSuccess, fmt.Sprintf("%s %s successfully", m.schema.Singular, verb))
	_ = m.Load(ctx)
	return nil
}

// RequestAction opens the confirm modal for action against id.
func (m *Manager) RequestAction(action models.Action, id string) error {
	if (action == models.ActionActivate || action == models.ActionDeactivate) && !m.schema.HasActivity() {
		return fmt.Errorf("%w: %s %s", ErrUnsupportedAction, action, m.schema.Name)
	}
	name := id
	if row, ok := m.list.Find(id, m.schema.ID); ok {
		name = m.schema.Label(row)
	}
	m.confirm.Open(action, id, name)
	return nil
}

// Confirmation returns the confirm modal state.
func (m *Manager) Confirmation() ConfirmRequest {
	return m.confirm.Snapshot()
}

// Confirm performs the pending action. Success closes the modal and reloads once; failure
// keeps it open and does not reload.
func (m *Manager) Confirm(ctx context.Context) error {
	err := m.confirm.Confirm(ctx, func(ctx context.Context, req ConfirmRequest) error {
		start := time.Now()
		var (
			op  string
			err error
		)
		switch req.Action {
		case models.ActionDelete:
			op = models.AuditOpDelete
			err = m.resource.Remove(ctx, req.TargetID)
		case models.ActionActivate:
			op = models.AuditOpActivate
			err = m.resource.SetActive(ctx, req.TargetID, true)
		case models.ActionDeactivate:
			op = models.AuditOpDeactivate
			err = m.resource.SetActive(ctx, req.TargetID, false)
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedAction, req.Action)
		}
		m.observe(ctx, Mutation{
			Entity:     m.schema.Name,
			Operation:  op,
			ResourceID: req.TargetID,
			Err:        err,
			Duration:   time.Since(start),
		})
		if err != nil {
			m.notify(ctx, models.NoticeError, client.UserMessage(err))
			return err
		}
		m.notify(ctx, models.NoticeSuccess, fmt.Sprintf("%s %s successfully", req.Name, pastTense(req.Action)))
		return nil
	})
	if err != nil {
		return err
	}
	_ = m.Load(ctx)
	return nil
}

// Cancel closes the confirm modal.
func (m *Manager) Cancel() {
	m.confirm.Cancel()
}

// Options returns the choices for a select or relational field.
func (m *Manager) Options(ctx context.Context, fieldName string) ([]schema.Option, error) {
	field, ok := m.schema.Field(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, fieldName)
	}
	if !field.IsReference() {
		return field.Options, nil
	}
	if m.refs == nil {
		return nil, fmt.Errorf("no reference resolver for %s", field.Ref)
	}
	res, refSchema, ok := m.refs.Reference(field.Ref)
	if !ok {
		return nil, fmt.Errorf("unknown reference %s", field.Ref)
	}
	page, err := res.List(ctx, models.ListQuery{Page: 1, PageSize: m.maxSize})
	if err != nil {
		return nil, err
	}
	options := make([]schema.Option, 0, len(page.Items))
	for _, row := range page.Items {
		options = append(options, schema.Option{Value: refSchema.ID(row), Label: refSchema.Label(row)})
	}
	return options, nil
}

// Saved returns the record the backend echoed for the last successful submit.
func (m *Manager) Saved() models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved.Clone()
}

// Notify queues a notice.
func (m *Manager) Notify(level models.NoticeLevel, message string) {
	if message == "" {
		return
	}
	m.mu.Lock()
	m.notices = append(m.notices, models.Notice{Level: level, Message: message})
	m.mu.Unlock()
}

func (m *Manager) notify(ctx context.Context, level models.NoticeLevel, message string) {
	if sink := noticeSinkFrom(ctx); sink != nil {
		if message != "" {
			sink.add(models.Notice{Level: level, Message: message})
		}
		return
	}
	m.Notify(level, message)
}

// Notices drains pending notices.
func (m *Manager) Notices() []models.Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}

// Close unmounts the manager. Late responses are ignored.
func (m *Manager) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.list.Close()
	m.form.Close()
	m.confirm.Cancel()
}

// Closed reports whether Close was called.
func (m *Manager) Closed() bool {
	return m.closed.Load()
}

func (m *Manager) observe(ctx context.Context, mutation Mutation) {
	if m.observer == nil {
		return
	}
	m.observer(ctx, mutation)
}

func pastTense(action models.Action) string {
	switch action {
	case models.ActionDelete:
		return "deleted"
	case models.ActionActivate:
		return "activated"
	case models.ActionDeactivate:
		return "deactivated"
	default:
		return string(action)
	}
}
