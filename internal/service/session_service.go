package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/models"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
)

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// SessionConfig tunes console sessions.
type SessionConfig struct {
	TTL time.Duration
}

// SessionService binds browser sessions to the bearer token an operator pastes at login.
// Tokens are never verified here; the backend remains the authority on every call.
type SessionService struct {
	store   sessionStore
	metrics *MetricsService
	logger  *zap.Logger
	cfg     SessionConfig
	now     func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store sessionStore, metrics *MetricsService, cfg SessionConfig, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &SessionService{store: store, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Login stores a new session for token. JWT claims are read without verification to show
// who is signed in and to cap the session at the token's expiry; opaque tokens are accepted.
func (s *SessionService) Login(ctx context.Context, rawToken string) (*models.Session, error) {
	token := bearerValue(rawToken)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			if !now.Before(exp.Time) {
				return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has expired")
			}
			if exp.Time.Before(session.ExpiresAt) {
				session.ExpiresAt = exp.Time.UTC()
			}
		}
		session.Subject, _ = claims.GetSubject()
		session.DisplayName = displayName(claims)
	} else {
		s.logger.Debug("opaque token pasted at login", zap.Error(err))
	}

	if err := s.store.Save(ctx, session, session.ExpiresAt.Sub(now)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}
	s.logger.Info("console session started", zap.String("session_id", session.ID), zap.String("subject", session.Subject))
	return session, nil
}

// Get resolves a live session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		s.metrics.RecordSessionLookup(false)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in required")
	}
	session, err := s.store.Get(ctx, id)
	if err != nil {
		s.metrics.RecordSessionLookup(false)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Expired(s.now()) {
		s.metrics.RecordSessionLookup(false)
		_ = s.store.Delete(ctx, id)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	s.metrics.RecordSessionLookup(true)
	return session, nil
}

// Logout deletes a session.
func (s *SessionService) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

// TokenSource returns a token source reading the session's token on every request, so a
// logout or expiry takes effect on the next upstream call.
func (s *SessionService) TokenSource(sessionID string) client.TokenSource {
	return client.TokenFunc(func(ctx context.Context) (string, error) {
		session, err := s.Get(ctx, sessionID)
		if err != nil {
			return "", err
		}
		return session.Token, nil
	})
}

func bearerValue(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.EqualFold(token, "bearer") {
		return ""
	}
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return token
}

func displayName(claims jwt.MapClaims) string {
	for _, key := range []string{"name", "preferred_username", "email", "sub"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
