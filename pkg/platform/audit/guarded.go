package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"fiscus/pkg/platform/clock"
)

// ErrCircuitOpen is returned while a guarded sink is cooling down.
var ErrCircuitOpen = errors.New("audit sink circuit open")

// Guarded wraps a Publisher with a circuit breaker. After threshold
// consecutive failures events are dropped without touching the sink until
// cooldown has passed; the next event then tries the sink again.
type Guarded struct {
	next      Publisher
	clock     clock.Clock
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	dropped   int
}

// NewGuarded wraps next. Non-positive threshold or cooldown select 5 and one minute.
func NewGuarded(next Publisher, threshold int, cooldown time.Duration, clk clock.Clock) *Guarded {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Guarded{next: next, clock: clk, threshold: threshold, cooldown: cooldown}
}

func (g *Guarded) Emit(ctx context.Context, event Event) error {
	if !g.allow() {
		return ErrCircuitOpen
	}
	err := g.next.Emit(ctx, event)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		g.failures = 0
		return nil
	}
	g.failures++
	if g.failures >= g.threshold {
		g.openUntil = g.clock.Now().Add(g.cooldown)
	}
	return err
}

func (g *Guarded) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures < g.threshold {
		return true
	}
	if g.clock.Now().Before(g.openUntil) {
		g.dropped++
		return false
	}
	// half-open: let one event try the sink
	g.failures = g.threshold - 1
	return true
}

// Open reports whether events are currently being dropped.
func (g *Guarded) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures >= g.threshold && g.clock.Now().Before(g.openUntil)
}

// Dropped returns how many events were skipped while open.
func (g *Guarded) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
