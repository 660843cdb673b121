package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/campus-admin-console/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	mutations        *prometheus.CounterVec
	sessionLookups   *prometheus.CounterVec
	dbQueryDuration  *prometheus.HistogramVec
	liveConnections  prometheus.Gauge
	workspaces       prometheus.Gauge

	requestCount          uint64
	requestDurationTotal  uint64
	upstreamCount         uint64
	upstreamFailures      uint64
	upstreamDurationTotal uint64
	mutationCount         uint64
	mutationFailures      uint64
	liveConnectionCount   int64
	workspaceCount        int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of calls to the backend API",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity", "op", "status"})

	upstreamTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total number of calls to the backend API",
	}, []string{"entity", "op", "status"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_mutations_total",
		Help: "Console create, update and status actions by outcome",
	}, []string{"entity", "operation", "outcome"})

	sessionLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_lookups_total",
		Help: "Session store lookups by result",
	}, []string{"result"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	liveConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_list_connections",
		Help: "Open live list websocket connections",
	})

	workspaces := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_workspaces",
		Help: "Session workspaces held in memory",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, upstreamDuration, upstreamTotal, mutations, sessionLookups, dbQueryDuration, liveConnections, workspaces, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		upstreamTotal:    upstreamTotal,
		mutations:        mutations,
		sessionLookups:   sessionLookups,
		dbQueryDuration:  dbQueryDuration,
		liveConnections:  liveConnections,
		workspaces:       workspaces,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveUpstream records a backend call. It matches the resource client's observer signature.
func (m *MetricsService) ObserveUpstream(entity, op string, status int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	labelStatus := "error"
	if status > 0 {
		labelStatus = fmt.Sprintf("%d", status)
	}
	m.upstreamDuration.WithLabelValues(entity, op, labelStatus).Observe(duration.Seconds())
	m.upstreamTotal.WithLabelValues(entity, op, labelStatus).Inc()
	atomic.AddUint64(&m.upstreamCount, 1)
	atomic.AddUint64(&m.upstreamDurationTotal, uint64(duration.Nanoseconds()))
	if err != nil {
		atomic.AddUint64(&m.upstreamFailures, 1)
	}
}

// RecordMutation counts a console mutation by outcome.
func (m *MetricsService) RecordMutation(entity, operation string, err error) {
	if m == nil {
		return
	}
	outcome := models.AuditOutcomeSuccess
	if err != nil {
		outcome = models.AuditOutcomeFailure
		atomic.AddUint64(&m.mutationFailures, 1)
	}
	atomic.AddUint64(&m.mutationCount, 1)
	m.mutations.WithLabelValues(entity, operation, outcome).Inc()
}

// RecordSessionLookup counts session store hits and misses.
func (m *MetricsService) RecordSessionLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.sessionLookups.WithLabelValues(result).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// LiveConnectionOpened increments the websocket gauge.
func (m *MetricsService) LiveConnectionOpened() {
	if m == nil {
		return
	}
	m.liveConnections.Inc()
	atomic.AddInt64(&m.liveConnectionCount, 1)
}

// LiveConnectionClosed decrements the websocket gauge.
func (m *MetricsService) LiveConnectionClosed() {
	if m == nil {
		return
	}
	m.liveConnections.Dec()
	atomic.AddInt64(&m.liveConnectionCount, -1)
}

// SetWorkspaces reports the number of live session workspaces.
func (m *MetricsService) SetWorkspaces(n int) {
	if m == nil {
		return
	}
	m.workspaces.Set(float64(n))
	atomic.StoreInt64(&m.workspaceCount, int64(n))
}

// Snapshot returns aggregated metrics suitable for the console status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	upstream := atomic.LoadUint64(&m.upstreamCount)
	upstreamDuration := atomic.LoadUint64(&m.upstreamDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgUpstreamMs float64
	if upstream > 0 {
		avgUpstreamMs = float64(upstreamDuration) / float64(upstream) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:             requests,
		AverageRequestDurationMs:  avgRequestMs,
		UpstreamRequestsTotal:     upstream,
		UpstreamFailuresTotal:     atomic.LoadUint64(&m.upstreamFailures),
		AverageUpstreamDurationMs: avgUpstreamMs,
		MutationsTotal:            atomic.LoadUint64(&m.mutationCount),
		MutationFailuresTotal:     atomic.LoadUint64(&m.mutationFailures),
		LiveConnections:           atomic.LoadInt64(&m.liveConnectionCount),
		Workspaces:                atomic.LoadInt64(&m.workspaceCount),
		Goroutines:                runtime.NumGoroutine(),
		GeneratedAt:               time.Now().UTC(),
	}
}
