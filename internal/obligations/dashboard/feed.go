// Package dashboard builds the attestation alert feed shown across many
// clients at once.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fiscus/internal/obligations/models"
)

const (
	// DefaultAlertWindow is how far ahead of expiry an attestation is flagged.
	DefaultAlertWindow = 30 * 24 * time.Hour
	// DefaultParallelism bounds concurrent record reads.
	DefaultParallelism = 8
)

// Reader reads a client's record from the remote store.
type Reader interface {
	Read(ctx context.Context, clientID string) (models.ClientFiscalRecord, bool, error)
}

// Cache is consulted before the reader and filled from it.
type Cache interface {
	Get(clientID string) (models.ClientFiscalRecord, bool)
	Put(clientID string, record models.ClientFiscalRecord)
}

// Alert is one client whose attestation needs attention.
type Alert struct {
	ClientID        string                   `json:"clientId"`
	Status          models.AttestationStatus `json:"status"`
	CreationDate    time.Time                `json:"creationDate"`
	ValidityEndDate time.Time                `json:"validityEndDate"`
}

// Result is the alert feed. Failed holds clients whose record could not be
// read; they are absent from Alerts.
type Result struct {
	Alerts []Alert           `json:"alerts"`
	Failed map[string]string `json:"failed,omitempty"`
}

type Feed struct {
	reader      Reader
	cache       Cache
	window      time.Duration
	parallelism int
	logger      *slog.Logger
}

type Option func(*Feed)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) {
		f.logger = logger
	}
}

// WithAlertWindow sets how close to expiry an attestation starts alerting.
func WithAlertWindow(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.window = d
		}
	}
}

// WithParallelism bounds the number of concurrent reads.
func WithParallelism(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.parallelism = n
		}
	}
}

func New(reader Reader, cache Cache, opts ...Option) (*Feed, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	f := &Feed{
		reader:      reader,
		cache:       cache,
		window:      DefaultAlertWindow,
		parallelism: DefaultParallelism,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Alerts loads every listed client and returns those whose attestation is
// flagged for alerts, visible on the dashboard, and expired or expiring
// within the alert window at now. Alerts are ordered by validity end date.
// A failed read only affects its own client; the returned error is set
// only when ctx ends first.
func (f *Feed) Alerts(ctx context.Context, clientIDs []string, now time.Time) (Result, error) {
	ids := unique(clientIDs)
	records := make([]*models.ClientFiscalRecord, len(ids))

	var (
		mu     sync.Mutex
		failed = map[string]string{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			if rec, ok := f.cache.Get(id); ok {
				records[i] = &rec
				return nil
			}
			rec, found, err := f.reader.Read(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f.logger.WarnContext(gctx, "alert feed read failed", "client_id", id, "error", err)
				mu.Lock()
				failed[id] = err.Error()
				mu.Unlock()
				return nil
			}
			if found {
				f.cache.Put(id, rec)
				records[i] = &rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Alerts: []Alert{}}
	if len(failed) > 0 {
		res.Failed = failed
	}
	for i, rec := range records {
		if rec == nil {
			continue
		}
		if alert, ok := f.alertFor(ids[i], *rec, now); ok {
			res.Alerts = append(res.Alerts, alert)
		}
	}
	sort.Slice(res.Alerts, func(i, j int) bool {
		a, b := res.Alerts[i], res.Alerts[j]
		if !a.ValidityEndDate.Equal(b.ValidityEndDate) {
			return a.ValidityEndDate.Before(b.ValidityEndDate)
		}
		return a.ClientID < b.ClientID
	})
	return res, nil
}

func (f *Feed) alertFor(clientID string, rec models.ClientFiscalRecord, now time.Time) (Alert, bool) {
	att := rec.Attestation
	if !att.ShowInAlert || rec.HiddenFromDashboard {
		return Alert{}, false
	}
	status := att.Status(now, f.window)
	if status != models.AttestationExpired && status != models.AttestationExpiringSoon {
		return Alert{}, false
	}
	return Alert{
		ClientID:        clientID,
		Status:          status,
		CreationDate:    *att.CreationDate,
		ValidityEndDate: *att.ValidityEndDate,
	}, true
}

// unique trims ids and drops blanks and duplicates, keeping first-seen order.
func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
