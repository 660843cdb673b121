package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/service"
)

func TestExportAPIReturnsSignedLink(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodPost, "/api/v1/console/department/export?format=csv&search=bio", "", cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result service.ExportResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, 1, result.Rows)
	assert.True(t, strings.HasPrefix(result.URL, "/exports/"))

	download := h.get(result.URL, nil)
	require.Equal(t, http.StatusOK, download.Code)
	assert.Contains(t, download.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, download.Body.String(), "Code,Name,Head,Active")
	assert.Contains(t, download.Body.String(), "BIO,Biology,,Yes")
	assert.NotContains(t, download.Body.String(), "Physics")
}

func TestExportPageRedirectsToDownload(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)
	h.get("/admin/department", cookie)

	w := h.postForm("/admin/department/export?format=pdf", url.Values{}, cookie)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/exports/"), location)
	download := h.get(location, nil)
	assert.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, "application/pdf", download.Header().Get("Content-Type"))
}

func TestExportPageReportsUnknownFormat(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.postForm("/admin/department/export?format=xlsx", url.Values{}, cookie)
	assert.Equal(t, "/admin/department", w.Header().Get("Location"))

	page := h.get("/admin/department", cookie)
	assert.Contains(t, page.Body.String(), "Export failed")
}

func TestExportDownloadRejectsTamperedToken(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.get("/exports/not-a-token", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
