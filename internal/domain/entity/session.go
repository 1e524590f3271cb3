package entity

import "time"

// SessionState is the lifecycle position of the bridge's browser session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionSnapshot is a read-only view of the bridge session.
type SessionSnapshot struct {
	State     SessionState `json:"-"`
	StateName string       `json:"state"`
	Model     string       `json:"model"`
	SessionID string       `json:"session_id,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	ReadyAt   *time.Time   `json:"ready_at,omitempty"`
	FailedAt  *time.Time   `json:"failed_at,omitempty"`
	RetryAt   *time.Time   `json:"retry_at,omitempty"`
}
