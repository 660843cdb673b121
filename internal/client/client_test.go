package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/pkg/middleware/requestid"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	ReqID  string
	Body   string
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	body     string
}

func (f *fakeBackend) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		ReqID:  r.Header.Get(requestid.Header),
		Body:   string(raw),
	})
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeBackend) last() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, backend *fakeBackend, tokens TokenSource, opts ...Option) *Client[models.Record] {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	t.Cleanup(srv.Close)
	endpoint := Endpoint{
		Entity:   "course",
		BaseURL:  srv.URL + "/api/course",
		ListKeys: []string{"courses", "data.courses", "data", "items"},
	}
	return New[models.Record](endpoint, tokens, opts...)
}

func TestListNormalizesEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		total int
	}{
		{name: "entity key with total", body: `{"courses":[{"id":1},{"id":2}],"total":42}`, count: 2, total: 42},
		{name: "nested data key", body: `{"data":{"courses":[{"id":1}],"total":7}}`, count: 1, total: 7},
		{name: "data array with meta", body: `{"status":true,"data":[{"id":1},{"id":2},{"id":3}],"meta":{"total":30}}`, count: 3, total: 30},
		{name: "items with pagination", body: `{"items":[{"id":1}],"pagination":{"total_count":11}}`, count: 1, total: 11},
		{name: "bare array", body: `[{"id":1},{"id":2}]`, count: 2, total: 2},
		{name: "no total falls back to count", body: `{"courses":[{"id":1}]}`, count: 1, total: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{body: tc.body}
			c := newTestClient(t, backend, nil)

			res, err := c.List(context.Background(), models.ListQuery{Search: "bio", Page: 2, PageSize: 5})
			require.NoError(t, err)
			assert.Len(t, res.Items, tc.count)
			assert.Equal(t, tc.total, res.Total)
			assert.Equal(t, "page=2&pageSize=5&search=bio", backend.last().Query)
		})
	}
}

func TestListRejectsUnknownEnvelope(t *testing.T) {
	backend := &fakeBackend{body: `{"results":[{"id":1}]}`}
	c := newTestClient(t, backend, nil)

	_, err := c.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedEnvelope))
	assert.Equal(t, "The server returned an unexpected response.", UserMessage(err))
}

func TestListKeepsNumbersExact(t *testing.T) {
	backend := &fakeBackend{body: `{"courses":[{"id":9007199254740993,"credit_hours":3}]}`}
	c := newTestClient(t, backend, nil)

	res, err := c.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, json.Number("9007199254740993"), res.Items[0]["id"])
	assert.Equal(t, "9007199254740993", res.Items[0].ID("id"))
}

func TestBearerTokenAttachedOnlyWhenPresent(t *testing.T) {
	backend := &fakeBackend{body: `[]`}

	authed := newTestClient(t, backend, StaticToken("abc"))
	_, err := authed.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", backend.last().Auth)

	anonymous := newTestClient(t, backend, StaticToken(""))
	_, err = anonymous.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, backend.last().Auth)

	noSource := newTestClient(t, backend, nil)
	_, err = noSource.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, backend.last().Auth)
}

func TestTokenSourceFailureSkipsRequest(t *testing.T) {
	backend := &fakeBackend{body: `[]`}
	c := newTestClient(t, backend, TokenFunc(func(context.Context) (string, error) {
		return "", errors.New("session expired")
	}))

	_, err := c.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
	assert.Empty(t, backend.requests)
}

func TestRequestIDPropagated(t *testing.T) {
	backend := &fakeBackend{body: `[]`}
	c := newTestClient(t, backend, nil)

	ctx := requestid.WithContext(context.Background(), "req-123")
	_, err := c.List(ctx, models.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "req-123", backend.last().ReqID)
}

func TestMutationsUseExpectedRoutes(t *testing.T) {
	backend := &fakeBackend{body: `{"status":true,"data":{"id":5,"course_code":"CS-101"}}`}
	c := newTestClient(t, backend, nil)
	ctx := context.Background()

	created, err := c.Create(ctx, map[string]any{"course_code": "CS-101"})
	require.NoError(t, err)
	assert.Equal(t, "5", created.ID("id"))
	assert.Equal(t, "CS-101", created["course_code"])
	assert.Equal(t, http.MethodPost, backend.last().Method)
	assert.Equal(t, "/api/course", backend.last().Path)
	assert.JSONEq(t, `{"course_code":"CS-101"}`, backend.last().Body)

	_, err = c.Update(ctx, "5", map[string]any{"title": "Intro"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, backend.last().Method)
	assert.Equal(t, "/api/course/5", backend.last().Path)

	require.NoError(t, c.Remove(ctx, "5"))
	assert.Equal(t, http.MethodDelete, backend.last().Method)
	assert.Equal(t, "/api/course/5", backend.last().Path)

	require.NoError(t, c.SetActive(ctx, "5", true))
	assert.Equal(t, http.MethodPatch, backend.last().Method)
	assert.Equal(t, "/api/course/5/activate", backend.last().Path)

	require.NoError(t, c.SetActive(ctx, "5", false))
	assert.Equal(t, "/api/course/5/deactivate", backend.last().Path)
}

func TestCreateUnwrapsEntityEnvelope(t *testing.T) {
	backend := &fakeBackend{status: http.StatusCreated, body: `{"course":{"id":"c-1","title":"Genetics"}}`}
	c := newTestClient(t, backend, nil)

	created, err := c.Create(context.Background(), map[string]any{"title": "Genetics"})
	require.NoError(t, err)
	assert.Equal(t, "Genetics", created["title"])
}

func TestHTTPErrorMessage(t *testing.T) {
	backend := &fakeBackend{status: http.StatusConflict, body: `{"status":false,"message":"Course code already exists"}`}
	c := newTestClient(t, backend, nil)

	_, err := c.Create(context.Background(), map[string]any{"course_code": "CS-101"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.Status)
	assert.Equal(t, "Course code already exists", httpErr.Message)
	assert.Equal(t, "Course code already exists", UserMessage(err))

	appErr := AsAppError(err)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}

func TestHTTPErrorFallsBackToStatusLine(t *testing.T) {
	backend := &fakeBackend{status: http.StatusNotFound, body: `not json`}
	c := newTestClient(t, backend, nil)

	err := c.Remove(context.Background(), "404")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "404 Not Found", httpErr.Message)
	assert.Equal(t, "NOT_FOUND", AsAppError(err).Code)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New[models.Record](Endpoint{Entity: "course", BaseURL: base + "/api/course", ListKeys: []string{"courses"}}, nil)
	_, err := c.List(context.Background(), models.ListQuery{Page: 1, PageSize: 10})

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, OpList, netErr.Op)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", AsAppError(err).Code)
}

func TestObserverReceivesOutcome(t *testing.T) {
	backend := &fakeBackend{status: http.StatusInternalServerError, body: `{"message":"boom"}`}

	type call struct {
		entity, op string
		status     int
		err        error
	}
	var calls []call
	c := newTestClient(t, backend, nil, WithObserver(func(entity, op string, status int, _ time.Duration, err error) {
		calls = append(calls, call{entity, op, status, err})
	}))

	err := c.SetActive(context.Background(), "1", false)
	require.Error(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "course", calls[0].entity)
	assert.Equal(t, OpDeactivate, calls[0].op)
	assert.Equal(t, http.StatusInternalServerError, calls[0].status)
	assert.Error(t, calls[0].err)
	assert.Equal(t, "UPSTREAM_ERROR", AsAppError(err).Code)
}
