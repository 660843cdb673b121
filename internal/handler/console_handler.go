package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/middleware"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
)

type workspaceProvider interface {
	Registry() *schema.Registry
	Manager(session *models.Session, entity string) (*manager.Manager, error)
	Resource(session *models.Session, entity string) (manager.Resource, schema.Schema, error)
	Release(sessionID string)
}

// ConsoleHandler renders the server-side admin screens. Every screen is one entity's
// manager: the list with its form and confirm overlays.
type ConsoleHandler struct {
	workspaces workspaceProvider
	logger     *zap.Logger
}

// NewConsoleHandler constructs ConsoleHandler.
func NewConsoleHandler(workspaces workspaceProvider, logger *zap.Logger) *ConsoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleHandler{workspaces: workspaces, logger: logger}
}

// Index lists the entities the console manages.
func (h *ConsoleHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.base(c, "Administration", ""))
}

// List renders an entity's list page. Without query parameters the manager's current query is
// reloaded, so redirects after a mutation land on the same page and search.
func (h *ConsoleHandler) List(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if query, changed := listQueryFromRequest(c, m.List().Query); changed {
		_ = m.Query(ctx, query)
	} else {
		_ = m.Load(ctx)
	}

	sch := m.Schema()
	form := m.Form()
	options := map[string][]schema.Option{}
	if form.Open {
		options = h.formOptions(ctx, m)
	}

	page := buildListPage(h.base(c, sch.Title, sch.Name), sch, m.List())
	page.Form = buildFormView(sch, form, options)
	page.Confirm = buildConfirmView(sch, m.Confirmation())
	page.Notices = m.Notices()
	c.HTML(http.StatusOK, "list.html", page)
}

// New opens a blank form.
func (h *ConsoleHandler) New(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	m.Cancel()
	m.OpenCreate()
	h.backToList(c)
}

// Edit opens the form pre-filled from a row of the current page.
func (h *ConsoleHandler) Edit(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	m.Cancel()
	if err := m.OpenEdit(c.Param("id")); err != nil {
		m.Notify(models.NoticeError, m.Schema().Singular+" is no longer on this page")
	}
	h.backToList(c)
}

// SubmitForm applies the posted inputs and saves, or closes the form when cancelled.
func (h *ConsoleHandler) SubmitForm(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	if c.PostForm("intent") == "cancel" {
		m.CloseForm()
		h.backToList(c)
		return
	}

	form := m.Form()
	if !form.Open {
		m.Notify(models.NoticeInfo, "The form was closed before it was saved")
		h.backToList(c)
		return
	}
	if err := m.SetFields(formInput(c, m.Schema(), form.Mode)); err != nil {
		h.logger.Warn("form input rejected", zap.String("entity", m.Schema().Name), zap.Error(err))
	}
	switch err := m.Submit(c.Request.Context()); {
	case err == nil:
	case errors.Is(err, manager.ErrBusy):
		m.Notify(models.NoticeInfo, "A save is already in progress")
	case errors.Is(err, manager.ErrFormClosed):
		m.Notify(models.NoticeInfo, "The form was closed before it was saved")
	}
	h.backToList(c)
}

// RequestAction opens the confirm modal for delete, activate or deactivate.
func (h *ConsoleHandler) RequestAction(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	action, valid := models.ParseAction(c.Param("action"))
	if !valid {
		m.Notify(models.NoticeError, "Unknown action "+c.Param("action"))
		h.backToList(c)
		return
	}
	m.CloseForm()
	if err := m.RequestAction(action, c.Param("id")); err != nil {
		m.Notify(models.NoticeError, m.Schema().Title+" cannot be "+string(action)+"d")
	}
	h.backToList(c)
}

// Confirm performs the pending action. A confirm while another is in flight is ignored.
func (h *ConsoleHandler) Confirm(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	if err := m.Confirm(c.Request.Context()); err != nil && !errors.Is(err, manager.ErrBusy) && !errors.Is(err, manager.ErrNotOpen) {
		h.logger.Info("confirm failed", zap.String("entity", m.Schema().Name), zap.Error(err))
	}
	h.backToList(c)
}

// Cancel closes any open overlay.
func (h *ConsoleHandler) Cancel(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	m.Cancel()
	m.CloseForm()
	h.backToList(c)
}

func (h *ConsoleHandler) manager(c *gin.Context) (*manager.Manager, bool) {
	m, err := h.workspaces.Manager(middleware.CurrentSession(c), c.Param("entity"))
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}
	return m, true
}

func (h *ConsoleHandler) formOptions(ctx context.Context, m *manager.Manager) map[string][]schema.Option {
	options := map[string][]schema.Option{}
	for _, field := range m.Schema().Fields {
		if !field.IsReference() && field.Kind != schema.KindSelect && field.Kind != schema.KindMultiSelect {
			continue
		}
		opts, err := m.Options(ctx, field.Name)
		if err != nil {
			h.logger.Warn("load options failed", zap.String("field", field.Name), zap.Error(err))
			m.Notify(models.NoticeError, "Could not load "+strings.ToLower(field.Label)+" choices: "+client.UserMessage(err))
			continue
		}
		options[field.Name] = opts
	}
	return options
}

func (h *ConsoleHandler) base(c *gin.Context, title, active string) pageBase {
	return pageBase{
		Title:    title,
		Active:   active,
		Session:  middleware.CurrentSession(c),
		Entities: h.workspaces.Registry().All(),
	}
}

func (h *ConsoleHandler) renderError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	_ = c.Error(err)
	page := errorPage{pageBase: h.base(c, http.StatusText(appErr.Status), ""), Message: appErr.Message}
	c.HTML(appErr.Status, "error.html", page)
}

func (h *ConsoleHandler) backToList(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/admin/"+c.Param("entity"))
}

// listQueryFromRequest merges the request's query parameters over current. changed is false
// when the request carries none of them.
func listQueryFromRequest(c *gin.Context, current models.ListQuery) (models.ListQuery, bool) {
	query := current
	changed := false
	if search, ok := c.GetQuery("search"); ok {
		query.Search = strings.TrimSpace(search)
		changed = true
	}
	if raw, ok := c.GetQuery("page"); ok {
		if page, err := strconv.Atoi(raw); err == nil {
			query.Page = page
		}
		changed = true
	}
	if raw, ok := c.GetQuery("pageSize"); ok {
		if size, err := strconv.Atoi(raw); err == nil {
			query.PageSize = size
		}
		changed = true
	}
	return query, changed
}

// formInput reads every editable field from the posted form. Unchecked checkboxes and empty
// multi-selects are absent from the body and read as empty.
func formInput(c *gin.Context, sch schema.Schema, mode manager.FormMode) map[string]any {
	raw := make(map[string]any, len(sch.Fields))
	for _, field := range sch.Fields {
		if field.CreateOnly && mode == manager.ModeEdit {
			continue
		}
		if field.Multiple() {
			raw[field.Name] = c.PostFormArray(field.Name)
			continue
		}
		raw[field.Name] = c.PostForm(field.Name)
	}
	return raw
}
