package models

import "time"

// Audit operations recorded for console mutations.
const (
	AuditOpCreate     = "CREATE"
	AuditOpUpdate     = "UPDATE"
	AuditOpDelete     = "DELETE"
	AuditOpActivate   = "ACTIVATE"
	AuditOpDeactivate = "DEACTIVATE"

	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditEntry represents a console mutation persisted to the audit trail.
type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	SessionID  *string   `db:"session_id" json:"session_id,omitempty"`
	Actor      string    `db:"actor" json:"actor"`
	Entity     string    `db:"entity" json:"entity"`
	Operation  string    `db:"operation" json:"operation"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Error      *string   `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	Entity   string
	Outcome  string
	Page     int
	PageSize int
}
