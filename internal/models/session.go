package models

import "time"

// Session binds a browser cookie to the bearer token the operator pasted at login.
type Session struct {
	ID          string    `json:"id"`
	Token       string    `json:"token"`
	Subject     string    `json:"subject,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}
