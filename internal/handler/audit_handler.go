package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/pkg/response"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error)
}

// AuditEntryResponse renders an audit entry with its payload inline.
type AuditEntryResponse struct {
	ID         string          `json:"id"`
	Actor      string          `json:"actor"`
	Entity     string          `json:"entity"`
	Operation  string          `json:"operation"`
	ResourceID string          `json:"resource_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Outcome    string          `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditHandler exposes the mutation audit trail.
type AuditHandler struct {
	audit auditLister
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit auditLister) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param entity query string false "Entity name"
// @Param outcome query string false "success or failure"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /console/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		Entity:  strings.TrimSpace(c.Query("entity")),
		Outcome: strings.TrimSpace(c.Query("outcome")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		filter.PageSize = size
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > models.MaxPageSize {
		filter.PageSize = 20
	}

	entries, total, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		item := AuditEntryResponse{
			ID:        entry.ID,
			Actor:     entry.Actor,
			Entity:    entry.Entity,
			Operation: entry.Operation,
			Outcome:   entry.Outcome,
			CreatedAt: entry.CreatedAt,
		}
		if entry.ResourceID != nil {
			item.ResourceID = *entry.ResourceID
		}
		if entry.Error != nil {
			item.Error = *entry.Error
		}
		if json.Valid(entry.Payload) {
			item.Payload = json.RawMessage(entry.Payload)
		}
		out = append(out, item)
	}
	response.JSON(c, http.StatusOK, out, response.NewPagination(filter.Page, filter.PageSize, total))
}
