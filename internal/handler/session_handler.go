package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/middleware"
	"github.com/noah-isme/campus-admin-console/internal/models"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
	"github.com/noah-isme/campus-admin-console/pkg/response"
)

type sessionManager interface {
	Login(ctx context.Context, rawToken string) (*models.Session, error)
	Logout(ctx context.Context, id string) error
}

type workspaceReleaser interface {
	Release(sessionID string)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// LoginRequest is the JSON login payload.
type LoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// SessionResponse describes a freshly opened session.
type SessionResponse struct {
	SessionID   string    `json:"session_id"`
	DisplayName string    `json:"display_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionHandler signs operators in and out.
type SessionHandler struct {
	sessions   sessionManager
	workspaces workspaceReleaser
	cookie     CookieConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionManager, workspaces workspaceReleaser, cookie CookieConfig, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cookie.Name == "" {
		cookie.Name = "console_session"
	}
	return &SessionHandler{sessions: sessions, workspaces: workspaces, cookie: cookie, logger: logger, now: time.Now}
}

// CookieName returns the session cookie name.
func (h *SessionHandler) CookieName() string {
	return h.cookie.Name
}

// LoginPage renders the token form.
func (h *SessionHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", loginPage{
		pageBase: pageBase{Title: "Sign in"},
		Next:     safeNext(c.Query("next")),
	})
}

// Login opens a session from the pasted token and returns to the page that asked for it.
func (h *SessionHandler) Login(c *gin.Context) {
	next := safeNext(c.PostForm("next"))
	session, err := h.sessions.Login(c.Request.Context(), c.PostForm("token"))
	if err != nil {
		appErr := appErrors.FromError(err)
		_ = c.Error(err)
		c.HTML(appErr.Status, "login.html", loginPage{
			pageBase: pageBase{Title: "Sign in"},
			Next:     next,
			Error:    appErr.Message,
		})
		return
	}
	h.setCookie(c, session)
	h.logger.Info("operator signed in", zap.String("subject", session.Subject))
	c.Redirect(http.StatusSeeOther, next)
}

// Logout ends the session and its workspace.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.end(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// APILogin godoc
// @Summary Open a console session
// @Description Stores the bearer token server-side and returns the session id. JWT claims are read without verification for the display name and expiry.
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body LoginRequest true "Bearer token"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /console/session [post]
func (h *SessionHandler) APILogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "token is required"))
		return
	}
	session, err := h.sessions.Login(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setCookie(c, session)
	response.Created(c, SessionResponse{
		SessionID:   session.ID,
		DisplayName: session.DisplayName,
		ExpiresAt:   session.ExpiresAt,
	})
}

// APILogout godoc
// @Summary Close the console session
// @Tags Session
// @Success 204
// @Router /console/session [delete]
func (h *SessionHandler) APILogout(c *gin.Context) {
	h.end(c)
	response.NoContent(c)
}

func (h *SessionHandler) end(c *gin.Context) {
	id := middleware.SessionID(c, h.cookie.Name)
	if id != "" {
		if err := h.sessions.Logout(c.Request.Context(), id); err != nil {
			h.logger.Warn("logout failed", zap.Error(err))
		}
		if h.workspaces != nil {
			h.workspaces.Release(id)
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

func (h *SessionHandler) setCookie(c *gin.Context, session *models.Session) {
	maxAge := int(session.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.ID, maxAge, "/", "", h.cookie.Secure, true)
}

// safeNext keeps post-login redirects on this host.
func safeNext(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/admin"
	}
	return raw
}
