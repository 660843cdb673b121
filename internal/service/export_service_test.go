package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
	"github.com/noah-isme/campus-admin-console/pkg/export"
	"github.com/noah-isme/campus-admin-console/pkg/storage"
)

type pagedSource struct {
	total   int
	queries []models.ListQuery
	err     error
}

func (p *pagedSource) List(ctx context.Context, query models.ListQuery) (models.ListResult[models.Record], error) {
	p.queries = append(p.queries, query)
	if p.err != nil {
		return models.ListResult[models.Record]{}, p.err
	}
	start := (query.Page - 1) * query.PageSize
	var items []models.Record
	for i := start; i < start+query.PageSize && i < p.total; i++ {
		items = append(items, models.Record{
			"id":           i + 1,
			"course_code":  fmt.Sprintf("CS-%03d", i+1),
			"title":        "Algorithms",
			"credit_hours": 3,
			"programs":     []any{map[string]any{"id": 1, "name": "BSc CS"}},
			"status":       "active",
		})
	}
	return models.ListResult[models.Record]{Items: items, Total: p.total}, nil
}

func newExportServiceForTest(t *testing.T, cfg ExportConfig) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceCSVWalksAllPages(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{PageSize: 2})
	src := &pagedSource{total: 5}

	result, err := svc.Export(context.Background(), schema.Course(), src, models.ListQuery{Search: "alg", Page: 3}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.Equal(t, 5, result.Rows)
	assert.False(t, result.Truncated)
	assert.True(t, strings.HasPrefix(result.URL, "/exports/"))
	require.Len(t, src.queries, 3)
	for i, q := range src.queries {
		assert.Equal(t, "alg", q.Search)
		assert.Equal(t, i+1, q.Page)
	}

	download, err := svc.Resolve(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", download.ContentType)
	assert.True(t, strings.HasPrefix(download.Filename, "course_"))

	f, err := svc.Open(download.RelativePath)
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Code,Title,Credits,Programs,Status", lines[0])
	assert.Equal(t, "CS-001,Algorithms,3,BSc CS,active", lines[1])
}

func TestExportServiceTruncatesAtMaxRows(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{PageSize: 4, MaxRows: 6})
	result, err := svc.Export(context.Background(), schema.Course(), &pagedSource{total: 20}, models.ListQuery{}, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Rows)
	assert.True(t, result.Truncated)

	download, err := svc.Resolve(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", download.ContentType)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{})
	_, err := svc.Export(context.Background(), schema.Vendor(), &pagedSource{}, models.ListQuery{}, "xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExportServicePropagatesListFailure(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{})
	upstream := errors.New("backend down")
	_, err := svc.Export(context.Background(), schema.Vendor(), &pagedSource{err: upstream}, models.ListQuery{}, "")
	assert.ErrorIs(t, err, upstream)
}

func TestExportServiceResolveRejectsTampering(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{})
	result, err := svc.Export(context.Background(), schema.Department(), &pagedSource{total: 1}, models.ListQuery{}, "csv")
	require.NoError(t, err)

	_, err = svc.Resolve(result.Token + "0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceCleanupRemovesOldFiles(t *testing.T) {
	svc, store := newExportServiceForTest(t, ExportConfig{})
	_, err := store.Save("old/department.csv", []byte("x"))
	require.NoError(t, err)
	path, err := store.Path("old/department.csv")
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	removed, err := svc.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, []string{"old/department.csv"}, removed)
}
