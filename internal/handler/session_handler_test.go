package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/middleware"
)

func TestLoginPageKeepsNext(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.get("/login?next=%2Fadmin%2Fcourse", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="/admin/course"`)
}

func TestLoginSetsCookieAndRedirects(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.postForm("/login", url.Values{"token": {"Bearer opaque-token"}, "next": {"/admin/course"}}, nil)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/course", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	w = h.get("/admin/department", cookies[0])
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.postForm("/login", url.Values{"token": {"  "}}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "token is required")
	assert.Empty(t, w.Result().Cookies())
}

func TestLoginIgnoresOffsiteNext(t *testing.T) {
	assert.Equal(t, "/admin", safeNext("//evil.test/admin"))
	assert.Equal(t, "/admin", safeNext("https://evil.test"))
	assert.Equal(t, "/admin", safeNext(""))
	assert.Equal(t, "/admin/course?page=2", safeNext("/admin/course?page=2"))
}

func TestLogoutEndsSession(t *testing.T) {
	h := newConsoleHarness(t)
	cookie := h.login(t)

	w := h.postForm("/logout", url.Values{}, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = h.get("/admin", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestAPISessionLifecycle(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.sendJSON(http.MethodPost, "/api/v1/console/session", `{"token":"opaque-token"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session SessionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &session))
	require.NotEmpty(t, session.SessionID)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/console/entities", nil)
	req.Header.Set(middleware.SessionHeader, session.SessionID)
	w = h.perform(req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entities []EntityDescriptor
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &entities))
	assert.Len(t, entities, 8)
	assert.Equal(t, "department", entities[0].Name)

	req, _ = http.NewRequest(http.MethodDelete, "/api/v1/console/session", nil)
	req.Header.Set(middleware.SessionHeader, session.SessionID)
	w = h.perform(req, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/console/entities", nil)
	req.Header.Set(middleware.SessionHeader, session.SessionID)
	w = h.perform(req, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPILoginRequiresToken(t *testing.T) {
	h := newConsoleHarness(t)

	w := h.sendJSON(http.MethodPost, "/api/v1/console/session", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error["code"])
}
