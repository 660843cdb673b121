package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/repository"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/service"
	"github.com/noah-isme/campus-admin-console/pkg/export"
	"github.com/noah-isme/campus-admin-console/pkg/storage"
)

const testCookie = "console_session"

// departmentUpstream is an in-memory stand-in for the institution's department endpoint.
type departmentUpstream struct {
	mu         sync.Mutex
	rows       map[int]map[string]any
	nextID     int
	calls      []string
	auths      []string
	failDelete bool
	failList   bool
}

func newDepartmentUpstream() *departmentUpstream {
	return &departmentUpstream{
		rows: map[int]map[string]any{
			1: {"id": 1, "name": "Biology", "code": "BIO", "is_active": true},
			2: {"id": 2, "name": "Physics", "code": "PHY", "is_active": false},
		},
		nextID: 2,
	}
}

func (u *departmentUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, r.Method+" "+r.URL.Path)
	u.auths = append(u.auths, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	rest := strings.TrimPrefix(r.URL.Path, "/api/department")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	id, _ := strconv.Atoi(parts[0])

	switch {
	case r.Method == http.MethodGet && rest == "" && u.failList:
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":false,"message":"Directory is offline"}`))
	case r.Method == http.MethodGet && rest == "":
		search := strings.ToLower(r.URL.Query().Get("search"))
		ids := make([]int, 0, len(u.rows))
		for id, row := range u.rows {
			if search == "" || strings.Contains(strings.ToLower(row["name"].(string)), search) {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
		items := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			items = append(items, u.rows[id])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"departments": items, "total": len(items)})
	case r.Method == http.MethodPost && rest == "":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.nextID++
		body["id"] = u.nextID
		body["is_active"] = true
		u.rows[u.nextID] = body
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "department": body})
	case r.Method == http.MethodPut && u.rows[id] != nil:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		for k, v := range body {
			u.rows[id][k] = v
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "department": u.rows[id]})
	case r.Method == http.MethodDelete && u.rows[id] != nil:
		if u.failDelete {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"status":false,"message":"Department has programs"}`))
			return
		}
		delete(u.rows, id)
		_, _ = w.Write([]byte(`{"status":true}`))
	case r.Method == http.MethodPatch && u.rows[id] != nil && len(parts) == 2:
		u.rows[id]["is_active"] = parts[1] == "activate"
		_, _ = w.Write([]byte(`{"status":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Department not found"}`))
	}
}

func (u *departmentUpstream) called(call string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		if c == call {
			n++
		}
	}
	return n
}

type auditListerStub struct {
	entries []models.AuditEntry
	err     error
	filter  models.AuditFilter
}

func (s *auditListerStub) List(_ context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	s.filter = filter
	return s.entries, len(s.entries), s.err
}

type consoleHarness struct {
	router   *gin.Engine
	upstream *departmentUpstream
	sessions *service.SessionService
	audit    *auditListerStub
	metrics  *service.MetricsService
	ready    error
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &consoleHarness{upstream: newDepartmentUpstream(), audit: &auditListerStub{}, metrics: service.NewMetricsService()}
	srv := httptest.NewServer(h.upstream)
	t.Cleanup(srv.Close)

	h.sessions = service.NewSessionService(repository.NewMemorySessionRepository(), h.metrics, service.SessionConfig{TTL: time.Hour}, nil)
	workspaces := service.NewWorkspaceService(schema.Default(), h.sessions, nil, h.metrics, service.WorkspaceConfig{
		UpstreamBaseURL: srv.URL,
		Timeout:         2 * time.Second,
		DefaultPageSize: 10,
		MaxPageSize:     50,
	}, nil)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exports := service.NewExportService(store, storage.NewSignedURLSigner("test-secret", time.Minute), service.ExportConfig{
		DownloadPrefix: "/exports",
		MaxRows:        100,
		PageSize:       50,
	}, nil, export.NewCSVExporter(), export.NewPDFExporter())

	router, err := NewRouter(RouterConfig{Env: "test", Cookie: CookieConfig{Name: testCookie}}, Dependencies{
		Sessions:   h.sessions,
		Workspaces: workspaces,
		Exports:    exports,
		Audit:      h.audit,
		Metrics:    h.metrics,
		Checks: map[string]Pinger{
			"sessions": PingFunc(func(context.Context) error { return h.ready }),
		},
	})
	require.NoError(t, err)
	h.router = router
	return h
}

// login opens a session directly and returns its cookie.
func (h *consoleHarness) login(t *testing.T) *http.Cookie {
	t.Helper()
	session, err := h.sessions.Login(context.Background(), "opaque-token")
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: session.ID}
}

func (h *consoleHarness) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return h.perform(req, cookie)
}

func (h *consoleHarness) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.perform(req, cookie)
}

func (h *consoleHarness) sendJSON(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return h.perform(req, cookie)
}

func (h *consoleHarness) perform(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]any         `json:"error"`
	Pagination map[string]any         `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestRouterHealthAndReady(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.get("/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions":"ok"`)

	h.ready = errors.New("redis: connection refused")
	w = h.get("/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouterServesPrometheusMetrics(t *testing.T) {
	h := newConsoleHarness(t)
	h.get("/health", nil)

	w := h.get("/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRouterRootRedirectsToConsole(t *testing.T) {
	h := newConsoleHarness(t)
	w := h.get("/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
}
