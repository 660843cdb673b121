package models

import "time"

// SystemMetrics is a point-in-time summary of the console's own counters.
type SystemMetrics struct {
	RequestsTotal             uint64    `json:"requests_total"`
	AverageRequestDurationMs  float64   `json:"average_request_duration_ms"`
	UpstreamRequestsTotal     uint64    `json:"upstream_requests_total"`
	UpstreamFailuresTotal     uint64    `json:"upstream_failures_total"`
	AverageUpstreamDurationMs float64   `json:"average_upstream_duration_ms"`
	MutationsTotal            uint64    `json:"mutations_total"`
	MutationFailuresTotal     uint64    `json:"mutation_failures_total"`
	LiveConnections           int64     `json:"live_connections"`
	Workspaces                int64     `json:"workspaces"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generated_at"`
}
