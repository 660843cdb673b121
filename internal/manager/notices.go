package manager

import (
	"context"
	"sync"

	"github.com/noah-isme/campus-admin-console/internal/models"
)

type noticeSinkKey struct{}

// NoticeSink collects the notices raised by manager calls made with a context from
// WithNoticeSink. Those notices never reach the manager's shared queue.
type NoticeSink struct {
	mu      sync.Mutex
	notices []models.Notice
}

// WithNoticeSink returns a context whose manager calls report notices to sink.
func WithNoticeSink(ctx context.Context, sink *NoticeSink) context.Context {
	return context.WithValue(ctx, noticeSinkKey{}, sink)
}

func noticeSinkFrom(ctx context.Context) *NoticeSink {
	if ctx == nil {
		return nil
	}
	sink, _ := ctx.Value(noticeSinkKey{}).(*NoticeSink)
	return sink
}

func (s *NoticeSink) add(n models.Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

// Notices drains the collected notices.
func (s *NoticeSink) Notices() []models.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}
