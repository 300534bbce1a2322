// Package gateway wraps the remote record store with bounded retries and a
// verify-after-write check. The store is treated as eventually consistent:
// a write only counts once an independent read returns the same content.
package gateway

//go:generate mockgen -source=gateway.go -destination=mocks/mocks.go -package=mocks RemoteStore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/migrate"
	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/clock"
	"fiscus/pkg/platform/sentinel"
)

// Backoff tables. The number of extra attempts is len(table).
var (
	ReadBackoff  = []time.Duration{1 * time.Second, 2 * time.Second}
	WriteBackoff = []time.Duration{1500 * time.Millisecond, 3 * time.Second}
)

// DefaultSettleDelay is how long Verify waits before reading back.
const DefaultSettleDelay = 300 * time.Millisecond

var tracer = otel.Tracer("fiscus/gateway")

// RemoteStore is the opaque durable store. GetClientRecord returns
// sentinel.ErrNotFound when nothing was ever saved for the client.
type RemoteStore interface {
	GetClientRecord(ctx context.Context, clientID string) ([]byte, error)
	UpdateClientRecord(ctx context.Context, clientID string, payload []byte) error
}

type Gateway struct {
	store    RemoteStore
	migrator *migrate.Migrator
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	settle   time.Duration
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(g *Gateway) {
		g.clock = c
	}
}

// WithSettleDelay overrides the pause between a write and its read-back.
func WithSettleDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.settle = d
		}
	}
}

func New(store RemoteStore, migrator *migrate.Migrator, opts ...Option) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if migrator == nil {
		return nil, fmt.Errorf("migrator is required")
	}
	g := &Gateway{
		store:    store,
		migrator: migrator,
		clock:    clock.Real{},
		logger:   slog.New(slog.DiscardHandler),
		settle:   DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Read fetches and migrates the client's record, bypassing any cache.
// found is false when the store has never seen the client. After the retry
// budget is spent the error is a *TransientIOError.
func (g *Gateway) Read(ctx context.Context, clientID string) (models.ClientFiscalRecord, bool, error) {
	ctx, span := tracer.Start(ctx, "gateway.Read", trace.WithAttributes(attribute.String("client_id", clientID)))
	defer span.End()

	payload, attempts, err := retry(ctx, g, "read", clientID, ReadBackoff, func(ctx context.Context) ([]byte, error) {
		return g.store.GetClientRecord(ctx, clientID)
	})
	span.SetAttributes(attribute.Int("attempts", attempts))
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetStatus(codes.Ok, "not found")
		return models.NewClientFiscalRecord(clientID), false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ClientFiscalRecord{}, false, err
	}

	rec, report := g.migrator.DecodeRecord(ctx, clientID, payload)
	span.SetAttributes(attribute.Int("repairs", len(report.Notices)))
	span.SetStatus(codes.Ok, "")
	return rec, true, nil
}

// Write attempts the remote update and reports whether it was accepted.
// The cause of a failure is logged.
func (g *Gateway) Write(ctx context.Context, clientID string, record models.ClientFiscalRecord) bool {
	return g.Persist(ctx, clientID, record) == nil
}

// Persist is Write with the failure cause returned instead of only logged.
func (g *Gateway) Persist(ctx context.Context, clientID string, record models.ClientFiscalRecord) error {
	ctx, span := tracer.Start(ctx, "gateway.Write", trace.WithAttributes(attribute.String("client_id", clientID)))
	defer span.End()

	payload, err := json.Marshal(record)
	if err != nil {
		err = fmt.Errorf("encode client record: %w", err)
		g.logger.ErrorContext(ctx, "client record not written", "client_id", clientID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	_, attempts, err := retry(ctx, g, "write", clientID, WriteBackoff, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.UpdateClientRecord(ctx, clientID, payload)
	})
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		g.logger.ErrorContext(ctx, "client record not written",
			"client_id", clientID,
			"attempts", attempts,
			"transient", IsTransient(err),
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Verify waits for the settle delay, reads the record back and compares the
// persisted fields with expected. Every differing field is logged.
func (g *Gateway) Verify(ctx context.Context, clientID string, expected models.ClientFiscalRecord) bool {
	return g.Confirm(ctx, clientID, expected) == nil
}

// Confirm is Verify with the reason returned. A content mismatch wraps
// sentinel.ErrVerificationMismatch and names the differing fields.
func (g *Gateway) Confirm(ctx context.Context, clientID string, expected models.ClientFiscalRecord) error {
	ctx, span := tracer.Start(ctx, "gateway.Verify", trace.WithAttributes(attribute.String("client_id", clientID)))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := g.clock.Sleep(ctx, g.settle); err != nil {
		return fail(err)
	}

	actual, found, err := g.Read(ctx, clientID)
	if err != nil {
		g.logger.WarnContext(ctx, "verification read failed", "client_id", clientID, "error", err)
		return fail(err)
	}
	if !found {
		g.metrics.IncrementVerifyMismatch()
		g.logger.WarnContext(ctx, "verification found no record", "client_id", clientID)
		return fail(fmt.Errorf("%w: record absent after write", sentinel.ErrVerificationMismatch))
	}

	diffs := models.DiffRecords(expected, actual)
	if len(diffs) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	g.metrics.IncrementVerifyMismatch()
	paths := make([]string, 0, len(diffs))
	for _, d := range diffs {
		g.logger.WarnContext(ctx, "verification mismatch",
			"client_id", clientID,
			"field", d.Path,
			"expected", d.Expected,
			"actual", d.Actual,
		)
		paths = append(paths, d.Path)
	}
	span.SetAttributes(attribute.Int("mismatched_fields", len(diffs)))
	return fail(fmt.Errorf("%w: %s", sentinel.ErrVerificationMismatch, strings.Join(paths, ", ")))
}

// retry runs call once plus one extra attempt per backoff entry, sleeping
// the listed delay between attempts. Final errors are returned unwrapped;
// an exhausted budget yields a *TransientIOError.
func retry[T any](ctx context.Context, g *Gateway, op, clientID string, backoff []time.Duration, call func(context.Context) (T, error)) (T, int, error) {
	var (
		zero    T
		lastErr error
	)
	maxAttempts := len(backoff) + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := g.clock.Now()
		out, err := call(ctx)
		elapsed := g.clock.Now().Sub(start).Seconds()
		if err == nil {
			g.metrics.RecordStoreAttempt(op, "ok", elapsed)
			return out, attempt, nil
		}
		if !retryable(err) {
			outcome := "error"
			if errors.Is(err, sentinel.ErrNotFound) {
				outcome = "not_found"
			}
			g.metrics.RecordStoreAttempt(op, outcome, elapsed)
			return zero, attempt, err
		}
		g.metrics.RecordStoreAttempt(op, "transient", elapsed)
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		delay := backoff[attempt-1]
		g.logger.WarnContext(ctx, "remote store call failed, retrying",
			"op", op,
			"client_id", clientID,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
		if err := g.clock.Sleep(ctx, delay); err != nil {
			return zero, attempt, err
		}
	}
	return zero, maxAttempts, &TransientIOError{Op: op, ClientID: clientID, Attempts: maxAttempts, Err: lastErr}
}
