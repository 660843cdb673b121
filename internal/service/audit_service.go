package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-console/internal/manager"
	"github.com/noah-isme/campus-admin-console/internal/models"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
	"github.com/noah-isme/campus-admin-console/pkg/jobs"
)

const auditJobType = "console.audit"

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditConfig tunes the audit writer.
type AuditConfig struct {
	Workers   int
	Retries   int
	Retention time.Duration
}

// AuditService records every console mutation. Writes go through a job queue so a slow
// database never holds up a screen; without a repository only metrics are kept.
type AuditService struct {
	repo    auditRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
	cfg     AuditConfig
	now     func() time.Time
}

// NewAuditService constructs an AuditService. repo may be nil when auditing is disabled.
func NewAuditService(repo auditRepository, metrics *MetricsService, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
	if repo != nil {
		s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.Retries,
			RetryDelay: 500 * time.Millisecond,
			Logger:     logger,
		})
	}
	return s
}

// Enabled reports whether entries are persisted.
func (s *AuditService) Enabled() bool {
	return s.repo != nil
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Observer returns the mutation hook for a session's managers.
func (s *AuditService) Observer(session *models.Session) manager.MutationObserver {
	return func(ctx context.Context, m manager.Mutation) {
		s.Record(session, m)
	}
}

// Record counts a mutation and queues its audit entry.
func (s *AuditService) Record(session *models.Session, m manager.Mutation) {
	s.metrics.RecordMutation(m.Entity, m.Operation, m.Err)
	if s.queue == nil {
		return
	}

	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		Entity:    m.Entity,
		Operation: m.Operation,
		Outcome:   models.AuditOutcomeSuccess,
		CreatedAt: s.now().UTC(),
	}
	if session != nil {
		id := session.ID
		entry.SessionID = &id
		entry.Actor = session.DisplayName
		if entry.Actor == "" {
			entry.Actor = session.Subject
		}
	}
	if entry.Actor == "" {
		entry.Actor = "anonymous"
	}
	if m.ResourceID != "" {
		resourceID := m.ResourceID
		entry.ResourceID = &resourceID
	}
	if len(m.Payload) > 0 {
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			s.logger.Warn("audit payload not encodable", zap.String("entity", m.Entity), zap.Error(err))
		} else {
			entry.Payload = payload
		}
	}
	if m.Err != nil {
		msg := m.Err.Error()
		entry.Outcome = models.AuditOutcomeFailure
		entry.Error = &msg
	}

	err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry})
	if err != nil {
		s.logger.Warn("audit entry dropped",
			zap.String("entity", entry.Entity),
			zap.String("operation", entry.Operation),
			zap.Error(err),
		)
	}
}

// List returns persisted entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	if s.repo == nil {
		return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "audit trail is disabled")
	}
	start := time.Now()
	entries, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("audit_list", time.Since(start))
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, total, nil
}

// Prune deletes entries older than the retention window.
func (s *AuditService) Prune(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-s.cfg.Retention)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit trail: %w", err)
	}
	if n > 0 {
		s.logger.Info("audit trail pruned", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// RunRetention prunes on every tick until ctx is done.
func (s *AuditService) RunRetention(ctx context.Context, interval time.Duration) {
	if s.repo == nil {
		return
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(ctx); err != nil {
				s.logger.Warn("audit retention failed", zap.Error(err))
			}
		}
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditEntry)
	if !ok {
		return errors.New("audit job without entry")
	}
	start := time.Now()
	err := s.repo.Create(ctx, entry)
	s.metrics.ObserveDBQuery("audit_insert", time.Since(start))
	return err
}
