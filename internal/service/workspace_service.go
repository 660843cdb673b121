package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/client"
	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/validator"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
)

type tokenProvider interface {
	TokenSource(sessionID string) client.TokenSource
}

type mutationRecorder interface {
	Observer(session *models.Session) manager.MutationObserver
}

// WorkspaceConfig tunes per-session workspaces.
type WorkspaceConfig struct {
	UpstreamBaseURL string
	Timeout         time.Duration
	DefaultPageSize int
	MaxPageSize     int
	IdleTTL         time.Duration
	HTTPClient      *http.Client
}

// workspace holds one session's managers. Two sessions viewing the same entity never share
// list state.
type workspace struct {
	session  *models.Session
	clients  map[string]*client.Client[models.Record]
	managers map[string]*manager.Manager
	lastSeen time.Time
}

// WorkspaceService owns the resource managers of every signed-in session.
type WorkspaceService struct {
	registry *schema.Registry
	tokens   tokenProvider
	recorder mutationRecorder
	metrics  *MetricsService
	engine   *validator.Engine
	logger   *zap.Logger
	cfg      WorkspaceConfig
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// NewWorkspaceService constructs a WorkspaceService. recorder may be nil.
func NewWorkspaceService(registry *schema.Registry, tokens tokenProvider, recorder mutationRecorder, metrics *MetricsService, cfg WorkspaceConfig, logger *zap.Logger) *WorkspaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	cfg.UpstreamBaseURL = strings.TrimRight(cfg.UpstreamBaseURL, "/")
	return &WorkspaceService{
		registry:   registry,
		tokens:     tokens,
		recorder:   recorder,
		metrics:    metrics,
		engine:     validator.New(),
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		workspaces: make(map[string]*workspace),
	}
}

// Registry exposes the entity schemas.
func (s *WorkspaceService) Registry() *schema.Registry {
	return s.registry
}

// Manager returns the session's manager for entity, creating it on first use.
func (s *WorkspaceService) Manager(session *models.Session, entity string) (*manager.Manager, error) {
	sch, ok := s.registry.Get(entity)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown entity "+entity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspaceLocked(session)
	if m, ok := ws.managers[entity]; ok && !m.Closed() {
		return m, nil
	}

	opts := []manager.Option{
		manager.WithReferences(workspaceReferences{svc: s, session: session}),
		manager.WithValidator(s.engine),
		manager.WithPageSizes(s.cfg.DefaultPageSize, s.cfg.MaxPageSize),
		manager.WithLogger(s.logger.With(zap.String("entity", entity))),
	}
	if s.recorder != nil {
		opts = append(opts, manager.WithObserver(s.recorder.Observer(session)))
	}
	m := manager.New(sch, s.clientLocked(ws, sch), opts...)
	ws.managers[entity] = m
	return m, nil
}

// Resource returns the session's client and schema for entity without creating a manager.
func (s *WorkspaceService) Resource(session *models.Session, entity string) (manager.Resource, schema.Schema, error) {
	sch, ok := s.registry.Get(entity)
	if !ok {
		return nil, schema.Schema{}, appErrors.Clone(appErrors.ErrNotFound, "unknown entity "+entity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientLocked(s.workspaceLocked(session), sch), sch, nil
}

// Release closes every manager of a session, e.g. on logout.
func (s *WorkspaceService) Release(sessionID string) {
	s.mu.Lock()
	ws, ok := s.workspaces[sessionID]
	delete(s.workspaces, sessionID)
	count := len(s.workspaces)
	s.mu.Unlock()
	if !ok {
		return
	}
	closeWorkspace(ws)
	s.metrics.SetWorkspaces(count)
}

// Sweep closes workspaces idle for longer than the configured TTL and returns how many.
func (s *WorkspaceService) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	var idle []*workspace

	s.mu.Lock()
	for id, ws := range s.workspaces {
		if ws.lastSeen.Before(cutoff) {
			idle = append(idle, ws)
			delete(s.workspaces, id)
		}
	}
	count := len(s.workspaces)
	s.mu.Unlock()

	for _, ws := range idle {
		closeWorkspace(ws)
	}
	s.metrics.SetWorkspaces(count)
	if len(idle) > 0 {
		s.logger.Info("idle workspaces closed", zap.Int("closed", len(idle)), zap.Int("remaining", count))
	}
	return len(idle)
}

// Run sweeps idle workspaces on every tick until ctx is done, then closes the rest.
func (s *WorkspaceService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Count reports the number of live workspaces.
func (s *WorkspaceService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

func (s *WorkspaceService) closeAll() {
	s.mu.Lock()
	all := s.workspaces
	s.workspaces = make(map[string]*workspace)
	s.mu.Unlock()
	for _, ws := range all {
		closeWorkspace(ws)
	}
	s.metrics.SetWorkspaces(0)
}

func (s *WorkspaceService) workspaceLocked(session *models.Session) *workspace {
	ws, ok := s.workspaces[session.ID]
	if !ok {
		ws = &workspace{
			session:  session,
			clients:  make(map[string]*client.Client[models.Record]),
			managers: make(map[string]*manager.Manager),
		}
		s.workspaces[session.ID] = ws
		s.metrics.SetWorkspaces(len(s.workspaces))
	}
	ws.lastSeen = s.now()
	return ws
}

func (s *WorkspaceService) clientLocked(ws *workspace, sch schema.Schema) *client.Client[models.Record] {
	if c, ok := ws.clients[sch.Name]; ok {
		return c
	}
	opts := []client.Option{client.WithObserver(s.metrics.ObserveUpstream)}
	if s.cfg.Timeout > 0 {
		opts = append(opts, client.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(s.cfg.HTTPClient))
	}
	c := client.New[models.Record](client.Endpoint{
		Entity:   sch.Name,
		BaseURL:  s.cfg.UpstreamBaseURL + sch.Endpoint,
		ListKeys: sch.ListKeys,
	}, s.tokens.TokenSource(ws.session.ID), opts...)
	ws.clients[sch.Name] = c
	return c
}

func closeWorkspace(ws *workspace) {
	for _, m := range ws.managers {
		m.Close()
	}
}

// workspaceReferences resolves relational fields against the same session's clients.
type workspaceReferences struct {
	svc     *WorkspaceService
	session *models.Session
}

func (r workspaceReferences) Reference(entity string) (manager.Resource, schema.Schema, bool) {
	res, sch, err := r.svc.Resource(r.session, entity)
	if err != nil {
		return nil, schema.Schema{}, false
	}
	return res, sch, true
}
