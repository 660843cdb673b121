package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/pkg/response"
)

// ContextSessionKey is the gin context key storing the console session.
const ContextSessionKey = "consoleSession"

// SessionHeader carries the session id for JSON API clients that do not keep cookies.
const SessionHeader = "X-Console-Session"

// SessionResolver loads a live session by id.
type SessionResolver interface {
	Get(ctx context.Context, id string) (*models.Session, error)
}

// RequireSession protects JSON routes, answering 401 when no live session is presented.
func RequireSession(sessions SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.Get(c.Request.Context(), SessionID(c, cookieName))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// RequirePageSession protects HTML routes, redirecting to the login page when signed out.
func RequirePageSession(sessions SessionResolver, cookieName, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.Get(c.Request.Context(), SessionID(c, cookieName))
		if err != nil {
			target := loginPath
			if c.Request.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			}
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}
		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// SessionID reads the session id from the cookie, falling back to the session header.
func SessionID(c *gin.Context, cookieName string) string {
	if id, err := c.Cookie(cookieName); err == nil && id != "" {
		return id
	}
	return c.GetHeader(SessionHeader)
}

// CurrentSession returns the session stored by the session middleware.
func CurrentSession(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}
