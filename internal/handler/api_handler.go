package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/middleware"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
	"github.com/noah-isme/campus-admin-console/pkg/response"
)

// FieldDescriptor describes a form field.
type FieldDescriptor struct {
	Name     string          `json:"name"`
	Label    string          `json:"label"`
	Kind     string          `json:"kind"`
	Required bool            `json:"required"`
	Ref      string          `json:"ref,omitempty"`
	Options  []schema.Option `json:"options,omitempty"`
}

// EntityDescriptor describes an entity the console manages.
type EntityDescriptor struct {
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Singular    string            `json:"singular"`
	HasActivity bool              `json:"has_activity"`
	Columns     []schema.Column   `json:"columns"`
	Fields      []FieldDescriptor `json:"fields"`
}

// APIHandler exposes the resource managers as JSON.
type APIHandler struct {
	workspaces workspaceProvider
	logger     *zap.Logger
}

// NewAPIHandler constructs APIHandler.
func NewAPIHandler(workspaces workspaceProvider, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{workspaces: workspaces, logger: logger}
}

// Entities godoc
// @Summary List managed entities
// @Tags Console
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /console/entities [get]
func (h *APIHandler) Entities(c *gin.Context) {
	schemas := h.workspaces.Registry().All()
	out := make([]EntityDescriptor, 0, len(schemas))
	for _, sch := range schemas {
		out = append(out, describe(sch))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// List godoc
// @Summary List records
// @Tags Console
// @Produce json
// @Param entity path string true "Entity name"
// @Param search query string false "Search term"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /console/{entity} [get]
func (h *APIHandler) List(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	query, _ := listQueryFromRequest(c, m.List().Query)
	if err := m.Query(scopedNotices(c), query); err != nil {
		response.Error(c, client.AsAppError(err))
		return
	}
	snap := m.List()
	middleware.SetMeta(c, "entity", m.Schema().Name)
	middleware.SetMeta(c, "search", snap.Query.Search)
	response.JSON(c, http.StatusOK, snap.Rows, response.NewPagination(snap.Query.Page, snap.Query.PageSize, snap.Total), middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create a record
// @Tags Console
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param payload body map[string]interface{} true "Field values"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /console/{entity} [post]
func (h *APIHandler) Create(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	payload, ok := bindRecord(c)
	if !ok {
		return
	}
	m.Cancel()
	m.OpenCreate()
	h.submit(c, m, payload, http.StatusCreated)
}

// Update godoc
// @Summary Update a record
// @Description Fields omitted from the payload keep the value shown on the current page.
// @Tags Console
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param id path string true "Record ID"
// @Param payload body map[string]interface{} true "Field values"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /console/{entity}/{id} [put]
func (h *APIHandler) Update(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	payload, ok := bindRecord(c)
	if !ok {
		return
	}
	id := c.Param("id")
	m.Cancel()
	if err := m.OpenEdit(id); err != nil {
		rec := payload.Clone()
		rec[idField(m.Schema())] = id
		if err := m.OpenEditRecord(rec); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, err.Error()))
			return
		}
	}
	h.submit(c, m, payload, http.StatusOK)
}

// Delete godoc
// @Summary Delete a record
// @Tags Console
// @Param entity path string true "Entity name"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /console/{entity}/{id} [delete]
func (h *APIHandler) Delete(c *gin.Context) {
	h.perform(c, models.ActionDelete)
}

// Activate godoc
// @Summary Activate a record
// @Tags Console
// @Param entity path string true "Entity name"
// @Param id path string true "Record ID"
// @Success 204
// @Router /console/{entity}/{id}/activate [patch]
func (h *APIHandler) Activate(c *gin.Context) {
	h.perform(c, models.ActionActivate)
}

// Deactivate godoc
// @Summary Deactivate a record
// @Tags Console
// @Param entity path string true "Entity name"
// @Param id path string true "Record ID"
// @Success 204
// @Router /console/{entity}/{id}/deactivate [patch]
func (h *APIHandler) Deactivate(c *gin.Context) {
	h.perform(c, models.ActionDeactivate)
}

// Options godoc
// @Summary Choices for a select or relational field
// @Tags Console
// @Produce json
// @Param entity path string true "Entity name"
// @Param field path string true "Field name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /console/{entity}/options/{field} [get]
func (h *APIHandler) Options(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	options, err := m.Options(c.Request.Context(), c.Param("field"))
	if err != nil {
		if errors.Is(err, manager.ErrUnknownField) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, err.Error()))
			return
		}
		response.Error(c, client.AsAppError(err))
		return
	}
	if options == nil {
		options = []schema.Option{}
	}
	response.JSON(c, http.StatusOK, options, nil)
}

func (h *APIHandler) submit(c *gin.Context, m *manager.Manager, payload models.Record, status int) {
	if err := m.SetFields(schemaFields(m.Schema(), payload)); err != nil {
		m.CloseForm()
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	sink := &manager.NoticeSink{}
	if err := m.Submit(manager.WithNoticeSink(c.Request.Context(), sink)); err != nil {
		m.CloseForm()
		response.Error(c, mutationError(err))
		return
	}
	middleware.SetMeta(c, "notices", sink.Notices())
	response.JSON(c, status, m.Saved(), nil, middleware.ExtractMeta(c))
}

func (h *APIHandler) perform(c *gin.Context, action models.Action) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	m.CloseForm()
	if err := m.RequestAction(action, c.Param("id")); err != nil {
		response.Error(c, mutationError(err))
		return
	}
	if err := m.Confirm(scopedNotices(c)); err != nil {
		if !errors.Is(err, manager.ErrBusy) {
			m.Cancel()
		}
		response.Error(c, mutationError(err))
		return
	}
	response.NoContent(c)
}

// scopedNotices keeps notices raised by an API call out of the queue the HTML console renders.
func scopedNotices(c *gin.Context) context.Context {
	return manager.WithNoticeSink(c.Request.Context(), &manager.NoticeSink{})
}

func (h *APIHandler) manager(c *gin.Context) (*manager.Manager, bool) {
	m, err := h.workspaces.Manager(middleware.CurrentSession(c), c.Param("entity"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return m, true
}

func bindRecord(c *gin.Context) (models.Record, bool) {
	var payload models.Record
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return nil, false
	}
	return payload, true
}

// schemaFields drops keys the form does not declare, such as ids and timestamps echoed back
// by clients.
func schemaFields(sch schema.Schema, payload models.Record) map[string]any {
	raw := make(map[string]any, len(payload))
	for name, value := range payload {
		if _, ok := sch.Field(name); ok {
			raw[name] = value
		}
	}
	return raw
}

func mutationError(err error) error {
	var validationErr *manager.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, manager.RequiredFieldsMessage), validationErr.Fields)
	case errors.Is(err, manager.ErrBusy):
		return appErrors.Clone(appErrors.ErrConflict, "another change is already in progress")
	case errors.Is(err, manager.ErrUnsupportedAction):
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	default:
		return client.AsAppError(err)
	}
}

func idField(sch schema.Schema) string {
	if sch.IDField == "" {
		return "id"
	}
	return sch.IDField
}

func describe(sch schema.Schema) EntityDescriptor {
	d := EntityDescriptor{
		Name:        sch.Name,
		Title:       sch.Title,
		Singular:    sch.Singular,
		HasActivity: sch.HasActivity(),
		Columns:     sch.Columns,
	}
	for _, f := range sch.Fields {
		d.Fields = append(d.Fields, FieldDescriptor{
			Name:     f.Name,
			Label:    f.Label,
			Kind:     string(f.Kind),
			Required: f.Required(),
			Ref:      f.Ref,
			Options:  f.Options,
		})
	}
	return d
}
