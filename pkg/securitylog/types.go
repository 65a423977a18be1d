package securitylog

import (
	"time"
)

// EventType classifies a security-relevant occurrence.
type EventType string

const (
	EventLoginSuccess           EventType = "login_success"
	EventLoginFailed            EventType = "login_failed"
	EventLoginBlocked           EventType = "login_blocked"
	EventAccountLocked          EventType = "account_locked"
	EventUserRegistered         EventType = "user_registered"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
	EventGoogleLoginSuccess     EventType = "google_login_success"
	EventGoogleLoginFailed      EventType = "google_login_failed"
	EventSuspiciousActivity     EventType = "suspicious_activity"
)

// criticalTypes are mirrored to the operational log so operators can react
// even when event storage is unavailable.
var criticalTypes = map[EventType]bool{
	EventAccountLocked:      true,
	EventSuspiciousActivity: true,
}

// Event is one immutable security log entry. The client address is stored
// only in masked display form plus a keyed hash; the raw address is never
// persisted.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"event_type"`
	Message   string         `json:"message"`
	IPMasked  string         `json:"ip_masked"`
	IPHash    string         `json:"ip_hash"`
	AccountID string         `json:"account_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
