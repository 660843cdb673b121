package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/middleware"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/service"
	"github.com/noah-isme/campus-admin-console/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, sch schema.Schema, src service.ListSource, query models.ListQuery, format string) (*service.ExportResult, error)
	Resolve(token string) (*service.Download, error)
	Open(relPath string) (*os.File, error)
}

// ExportHandler renders list exports and serves their signed downloads.
type ExportHandler struct {
	workspaces workspaceProvider
	exports    exportService
	logger     *zap.Logger
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(workspaces workspaceProvider, exports exportService, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandler{workspaces: workspaces, exports: exports, logger: logger}
}

// Page exports the list the operator is looking at and redirects to the download.
func (h *ExportHandler) Page(c *gin.Context) {
	entity := c.Param("entity")
	session := middleware.CurrentSession(c)
	m, err := h.workspaces.Manager(session, entity)
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}
	result, err := h.export(c, session, entity, m.List().Query)
	if err != nil {
		m.Notify(models.NoticeError, "Export failed: "+client.UserMessage(err))
		c.Redirect(http.StatusSeeOther, "/admin/"+entity)
		return
	}
	if result.Truncated {
		m.Notify(models.NoticeInfo, fmt.Sprintf("Export limited to the first %d rows", result.Rows))
	}
	c.Redirect(http.StatusSeeOther, result.URL)
}

// API godoc
// @Summary Export records
// @Description Renders every record matching the search term and returns a signed, expiring download link.
// @Tags Console
// @Produce json
// @Param entity path string true "Entity name"
// @Param format query string false "csv or pdf" default(csv)
// @Param search query string false "Search term"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /console/{entity}/export [post]
func (h *ExportHandler) API(c *gin.Context) {
	result, err := h.export(c, middleware.CurrentSession(c), c.Param("entity"), models.ListQuery{Search: c.Query("search")})
	if err != nil {
		response.Error(c, client.AsAppError(err))
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an export
// @Tags Console
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.exports.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Open(download.RelativePath)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, file, nil)
}

func (h *ExportHandler) export(c *gin.Context, session *models.Session, entity string, query models.ListQuery) (*service.ExportResult, error) {
	resource, sch, err := h.workspaces.Resource(session, entity)
	if err != nil {
		return nil, err
	}
	result, err := h.exports.Export(c.Request.Context(), sch, resource, query, c.Query("format"))
	if err != nil {
		h.logger.Warn("export failed", zap.String("entity", entity), zap.Error(err))
		return nil, err
	}
	return result, nil
}
