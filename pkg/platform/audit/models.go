package audit

import (
	"context"
	"time"
)

// Action names a fiscal record lifecycle event.
type Action string

const (
	ActionRecordSaved      Action = "fiscal_record_saved"
	ActionRecordSaveFailed Action = "fiscal_record_save_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id"`
	Year      string    `json:"year,omitempty"`
	SaveID    string    `json:"save_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Publisher delivers audit events. Emit must not block on slow sinks for long;
// callers treat failures as non-fatal.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
