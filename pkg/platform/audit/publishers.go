package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// LogPublisher writes audit events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher logging at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	event = withDefaults(event)
	if p.logger == nil {
		return nil
	}
	p.logger.InfoContext(ctx, string(event.Action),
		"log_type", "audit",
		"event_id", event.ID,
		"client_id", event.ClientID,
		"year", event.Year,
		"save_id", event.SaveID,
		"reason", event.Reason,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, withDefaults(event))
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func withDefaults(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return event
}
