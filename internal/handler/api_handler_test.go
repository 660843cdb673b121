package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
)

func TestAPIListAppliesSearch(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.get("/api/v1/console/department?search=bio&pageSize=5", cookie)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var rows []models.Record
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Biology", rows[0]["name"])
	assert.Equal(t, float64(1), env.Pagination["total_count"])
	assert.Equal(t, float64(5), env.Pagination["page_size"])
	assert.Equal(t, "department", env.Meta["entity"])
	assert.Equal(t, "bio", env.Meta["search"])
}

func TestAPIListRequiresSession(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.get("/api/v1/console/department", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.upstream.calls)
}

func TestAPIUnknownEntity(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.get("/api/v1/console/library", cookie)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Error["code"])
}

func TestAPICreateReportsFieldErrors(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodPost, "/api/v1/console/department", `{"name":"X","code":"chem"}`, cookie)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "VALIDATION_ERROR", env.Error["code"])
	fields, ok := env.Error["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "code")
	assert.Zero(t, h.upstream.called("POST /api/department"))
}

func TestAPICreateReturnsServerEcho(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodPost, "/api/v1/console/department", `{"name":"Chemistry","code":"CHEM","id":99,"created_at":"2024-01-01"}`, cookie)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var rec models.Record
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, float64(3), rec["id"])
	assert.Equal(t, true, rec["is_active"])
	assert.NotEmpty(t, env.Meta["notices"])

	w = h.get("/api/v1/console/department", cookie)
	assert.Contains(t, w.Body.String(), "Chemistry")
}

func TestAPIUpdateRecordOffPage(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodPut, "/api/v1/console/department/2", `{"name":"Applied Physics","code":"APH"}`, cookie)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, h.upstream.called("PUT /api/department/2"))
	var rec models.Record
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &rec))
	assert.Equal(t, "Applied Physics", rec["name"])
}

func TestAPIStatusActions(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodPatch, "/api/v1/console/department/1/deactivate", "", cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, h.upstream.called("PATCH /api/department/1/deactivate"))

	w = h.sendJSON(http.MethodPatch, "/api/v1/console/department/2/activate", "", cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, h.upstream.called("PATCH /api/department/2/activate"))
}

func TestAPIActivateUnsupportedEntity(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodPatch, "/api/v1/console/prerequisite/7/activate", "", cookie)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.upstream.calls)
}

func TestAPIDeleteSurfacesBackendMessage(t *testing.T) {
	h := newConsoleHarness(t)
	h.upstream.failDelete = true
	cookie := h.login(t)

	w := h.sendJSON(http.MethodDelete, "/api/v1/console/department/1", "", cookie)

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "CONFLICT", env.Error["code"])
	assert.Equal(t, "Department has programs", env.Error["message"])

	// the failed API call must not leave a modal on the operator's page
	page := h.get("/admin/department", cookie)
	assert.NotContains(t, page.Body.String(), "Delete Biology?")
}

func TestAPIDeleteSucceeds(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.sendJSON(http.MethodDelete, "/api/v1/console/department/1", "", cookie)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, h.upstream.called("DELETE /api/department/1"))
}

func TestAPIOptions(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.get("/api/v1/console/course/options/status", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var options []schema.Option
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &options))
	assert.NotEmpty(t, options)

	w = h.get("/api/v1/console/course/options/nope", cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIStatusSnapshot(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)
	h.get("/api/v1/console/department", cookie)

	w := h.get("/api/v1/console/status", cookie)

	require.Equal(t, http.StatusOK, w.Code)
	var snapshot models.SystemMetrics
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &snapshot))
	assert.Equal(t, uint64(1), snapshot.UpstreamRequestsTotal)
	assert.Equal(t, int64(1), snapshot.Workspaces)
}

func TestAPIListFailureKeepsConsoleNotices(t *testing.T) {
	h := newConsoleHarness(t)
	h.upstream.failDelete = true
	cookie := h.login(t)
	h.get("/admin/department", cookie)
	h.get("/admin/department/1/confirm/delete", cookie)
	h.postForm("/admin/department/confirm", url.Values{}, cookie)

	h.upstream.mu.Lock()
	h.upstream.failList = true
	h.upstream.mu.Unlock()
	w := h.get("/api/v1/console/department", cookie)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())

	h.upstream.mu.Lock()
	h.upstream.failList = false
	h.upstream.mu.Unlock()
	body := h.get("/admin/department", cookie).Body.String()
	assert.Contains(t, body, "Department has programs")
	assert.NotContains(t, body, "Directory is offline")
}

func TestAPICreateReportsOnlyItsOwnNotices(t *testing.T) {
	h := newConsoleHarness(t)
	h.upstream.failDelete = true
	cookie := h.login(t)
	h.get("/admin/department", cookie)
	h.get("/admin/department/1/confirm/delete", cookie)
	h.postForm("/admin/department/confirm", url.Values{}, cookie)

	w := h.sendJSON(http.MethodPost, "/api/v1/console/department", `{"name":"Chemistry","code":"CHEM"}`, cookie)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	notices, _ := json.Marshal(decodeEnvelope(t, w).Meta["notices"])
	assert.Contains(t, string(notices), "Department created successfully")
	assert.NotContains(t, string(notices), "Department has programs")

	body := h.get("/admin/department", cookie).Body.String()
	assert.Contains(t, body, "Department has programs")
	assert.NotContains(t, body, "Department created successfully")
}

func TestAPIEntitiesDescribeFields(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.get("/api/v1/console/entities", cookie)

	require.Equal(t, http.StatusOK, w.Code)
	var entities []map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &entities))
	var course map[string]any
	for _, e := range entities {
		if e["name"] == "course" {
			course = e
		}
	}
	require.NotNil(t, course)
	var credits map[string]any
	for _, f := range course["fields"].([]any) {
		if field := f.(map[string]any); field["name"] == "credit_hours" {
			credits = field
		}
	}
	require.NotNil(t, credits)
	assert.Equal(t, "Credit hours", credits["label"])
	assert.Equal(t, "integer", credits["kind"])
	assert.Equal(t, true, credits["required"])
	assert.NotContains(t, credits, "Label")
	assert.NotContains(t, credits, "Rules")
}
