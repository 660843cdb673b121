package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
	"github.com/noah-isme/campus-admin-console/pkg/export"
	"github.com/noah-isme/campus-admin-console/pkg/storage"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ErrExportExpired is returned for download links past their expiry.
var ErrExportExpired = appErrors.New("EXPORT_EXPIRED", http.StatusGone, "export link has expired")

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ListSource pages through an entity's records.
type ListSource interface {
	List(ctx context.Context, query models.ListQuery) (models.ListResult[models.Record], error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	// DownloadPrefix is the route serving signed downloads, e.g. /exports.
	DownloadPrefix string
	MaxRows        int
	PageSize       int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string    `json:"-"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	Format       string    `json:"format"`
	Rows         int       `json:"rows"`
	Truncated    bool      `json:"truncated"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Download is a resolved signed link.
type Download struct {
	RelativePath string
	Filename     string
	ContentType  string
	ExpiresAt    time.Time
}

// ExportService renders an entity's filtered list to CSV or PDF and hands out signed links.
type ExportService struct {
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[string]export.Renderer
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csvRenderer, pdfRenderer export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/exports"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = models.MaxPageSize
	}
	renderers := make(map[string]export.Renderer, 2)
	if csvRenderer != nil {
		renderers[ExportFormatCSV] = csvRenderer
	}
	if pdfRenderer != nil {
		renderers[ExportFormatPDF] = pdfRenderer
	}
	return &ExportService{
		storage:   store,
		signer:    signer,
		renderers: renderers,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Export fetches every page matching query's search term, renders it and stores the file.
func (s *ExportService) Export(ctx context.Context, sch schema.Schema, src ListSource, query models.ListQuery, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	rows, truncated, err := s.collect(ctx, src, query.Search)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Title: sch.Title, Columns: make([]export.Column, 0, len(sch.Columns))}
	for _, col := range sch.Columns {
		dataset.Columns = append(dataset.Columns, export.Column{Key: col.Field, Label: col.Label})
	}
	for _, rec := range rows {
		row := make(map[string]string, len(sch.Columns))
		for _, col := range sch.Columns {
			row[col.Field] = rec.Text(col.Field)
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		dataset.Title = fmt.Sprintf("%s matching %q", sch.Title, search)
	}

	content, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("%s/%s_%s.%s", id, sch.Name, s.now().UTC().Format("20060102_150405"), renderer.Extension())
	relPath, err := s.storage.Save(filename, content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	s.logger.Info("export generated",
		zap.String("entity", sch.Name),
		zap.String("format", format),
		zap.Int("rows", len(rows)),
		zap.Bool("truncated", truncated),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          strings.TrimRight(s.cfg.DownloadPrefix, "/") + "/" + token,
		Format:       format,
		Rows:         len(rows),
		Truncated:    truncated,
		ExpiresAt:    expiresAt,
	}, nil
}

// Resolve validates a download token.
func (s *ExportService) Resolve(token string) (*Download, error) {
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, ErrExportExpired
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	filename := relPath
	if idx := strings.LastIndex(relPath, "/"); idx >= 0 {
		filename = relPath[idx+1:]
	}
	contentType := "application/octet-stream"
	for ext, r := range s.renderers {
		if strings.HasSuffix(filename, "."+ext) {
			contentType = r.ContentType()
		}
	}
	return &Download{RelativePath: relPath, Filename: filename, ContentType: contentType, ExpiresAt: expiresAt}, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	f, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return f, nil
}

// Cleanup removes files older than the link TTL, so no live link points at a missing file.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.signer.TTL())
}

// Run cleans up on every tick until ctx is done.
func (s *ExportService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup()
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}

func (s *ExportService) collect(ctx context.Context, src ListSource, search string) ([]models.Record, bool, error) {
	var rows []models.Record
	query := models.ListQuery{Search: search, Page: 1, PageSize: s.cfg.PageSize}
	for {
		page, err := src.List(ctx, query)
		if err != nil {
			return nil, false, err
		}
		rows = append(rows, page.Items...)
		if len(rows) >= s.cfg.MaxRows {
			return rows[:s.cfg.MaxRows], len(rows) > s.cfg.MaxRows || page.Total > s.cfg.MaxRows, nil
		}
		if len(page.Items) == 0 || len(page.Items) < query.PageSize || len(rows) >= page.Total {
			return rows, false, nil
		}
		query.Page++
	}
}
