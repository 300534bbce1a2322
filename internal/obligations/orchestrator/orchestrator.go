// Package orchestrator drives one client/year working set through load, edit
// and confirmed save. It owns the working copy; the remote store stays
// authoritative and a save only counts once it has been read back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fiscus/internal/obligations/merge"
	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/models"
	"fiscus/internal/obligations/rules"
	"fiscus/pkg/platform/audit"
	"fiscus/pkg/platform/clock"
	"fiscus/pkg/platform/sentinel"
)

// Phase is the orchestrator's position in the load/edit/save cycle.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
	PhaseDirty         Phase = "dirty"
	PhaseSaving        Phase = "saving"
	PhaseVerifyPending Phase = "verifyPending"
	PhaseFailed        Phase = "failed"
)

// Retry schedules. Loads get len(LoadRetryDelays) extra attempts on top of
// the gateway's own retries; saves get MaxExtraWriteCycles extra
// write+verify cycles after the first.
var (
	LoadRetryDelays     = []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second}
	VerifyRetryDelay    = 2 * time.Second
	MaxExtraWriteCycles = 2
)

// DefaultAutosaveInterval is how often a dirty working set is saved.
const DefaultAutosaveInterval = 120 * time.Second

// Gateway is the persistence port.
type Gateway interface {
	Read(ctx context.Context, clientID string) (models.ClientFiscalRecord, bool, error)
	Persist(ctx context.Context, clientID string, record models.ClientFiscalRecord) error
	Confirm(ctx context.Context, clientID string, expected models.ClientFiscalRecord) error
}

// Cache is the freshness cache port.
type Cache interface {
	Get(clientID string) (models.ClientFiscalRecord, bool)
	GetStale(clientID string) (models.ClientFiscalRecord, time.Time, bool)
	Put(clientID string, record models.ClientFiscalRecord)
}

// ProfileSource supplies the client attributes the default rules run on.
type ProfileSource interface {
	Profile(ctx context.Context, clientID string) (models.ClientProfile, error)
}

// NavigationGuard decides whether to leave a selection with unsaved changes,
// typically by asking the user.
type NavigationGuard func(ctx context.Context, state State) bool

// State is a snapshot of what the caller renders.
type State struct {
	ClientID            string
	Year                models.Year
	Phase               Phase
	ObligationSet       models.ObligationSet
	Attestation         models.Attestation
	HiddenFromDashboard bool
	HasUnsavedChanges   bool
	LastSaveConfirmed   bool
	LastError           error
	// Stale is set while showing a soft-expired cached copy because the
	// remote store could not be read.
	Stale bool
}

type Orchestrator struct {
	gateway  Gateway
	cache    Cache
	profiles ProfileSource
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Publisher
	guard    NavigationGuard
	autosave time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// saveMu serializes saves; mu guards everything below it.
	saveMu sync.Mutex
	mu     sync.Mutex

	token       uint64
	selCtx      context.Context
	selCancel   context.CancelFunc
	clientID    string
	year        models.Year
	phase       Phase
	profile     models.ClientProfile
	record      models.ClientFiscalRecord
	merged      map[models.Year]bool
	loaded      bool
	stale       bool
	dirty       bool
	editSeq     uint64
	confirmed   bool
	lastErr     error
	autosaveOff context.CancelFunc
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithAuditPublisher receives an event for every confirmed or failed save.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(o *Orchestrator) {
		o.audit = p
	}
}

// WithNavigationGuard installs the confirmation hook used by ConfirmNavigation.
func WithNavigationGuard(g NavigationGuard) Option {
	return func(o *Orchestrator) {
		o.guard = g
	}
}

// WithAutosaveInterval sets the autosave period. Zero disables autosave.
func WithAutosaveInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.autosave = d
		}
	}
}

func New(gateway Gateway, cache Cache, profiles ProfileSource, opts ...Option) (*Orchestrator, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile source is required")
	}
	o := &Orchestrator{
		gateway:  gateway,
		cache:    cache,
		profiles: profiles,
		clock:    clock.Real{},
		logger:   slog.New(slog.DiscardHandler),
		autosave: DefaultAutosaveInterval,
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.baseCtx, o.baseCancel = context.WithCancel(context.Background())
	return o, nil
}

// State returns a deep copy of the current working state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	s := State{
		ClientID:            o.clientID,
		Year:                o.year,
		Phase:               o.phase,
		HasUnsavedChanges:   o.dirty,
		LastSaveConfirmed:   o.confirmed,
		LastError:           o.lastErr,
		Stale:               o.stale,
		Attestation:         o.record.Attestation.Clone(),
		HiddenFromDashboard: o.record.HiddenFromDashboard,
	}
	if set, ok := o.record.Obligations(o.year); ok {
		s.ObligationSet = set.Clone()
	}
	return s
}

// HasUnsavedChanges reports whether leaving now would lose edits.
func (o *Orchestrator) HasUnsavedChanges() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unsavedLocked()
}

func (o *Orchestrator) unsavedLocked() bool {
	return o.dirty || o.phase == PhaseSaving || o.phase == PhaseVerifyPending
}

// ConfirmNavigation reports whether the caller may leave the current
// selection. Without unsaved changes it is always true; otherwise the
// navigation guard decides, and without a guard the answer is false.
func (o *Orchestrator) ConfirmNavigation(ctx context.Context) bool {
	o.mu.Lock()
	unsaved := o.unsavedLocked()
	state := o.stateLocked()
	o.mu.Unlock()

	if !unsaved {
		return true
	}
	if o.guard == nil {
		return false
	}
	return o.guard(ctx, state)
}

// Load selects a client and year. Any in-flight load or save for the previous
// selection is abandoned. An empty year selects the record's saved year, or
// the current year for a new client.
func (o *Orchestrator) Load(ctx context.Context, clientID string, year models.Year) error {
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	if year != "" && !year.IsValid() {
		return fmt.Errorf("invalid year %q", year)
	}

	o.mu.Lock()
	if o.selCancel != nil {
		o.selCancel()
	}
	o.stopAutosaveLocked()
	o.token++
	token := o.token
	selCtx, selCancel := context.WithCancel(o.baseCtx)
	o.selCtx, o.selCancel = selCtx, selCancel
	o.clientID = clientID
	o.year = year
	o.phase = PhaseLoading
	o.record = models.NewClientFiscalRecord(clientID)
	o.merged = map[models.Year]bool{}
	o.loaded, o.stale, o.dirty, o.confirmed = false, false, false, false
	o.lastErr = nil
	o.mu.Unlock()

	// The load ends when the caller gives up or the selection moves on.
	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()
	stop := context.AfterFunc(selCtx, cancelLoad)
	defer stop()

	o.logger.DebugContext(ctx, "loading obligations", "client_id", clientID, "year", string(year))

	if rec, ok := o.cache.Get(clientID); ok {
		profile, err := o.profiles.Profile(loadCtx, clientID)
		if err == nil {
			return o.apply(token, profile, rec, false)
		}
		o.logger.WarnContext(ctx, "profile read failed", "client_id", clientID, "error", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(LoadRetryDelays); attempt++ {
		if attempt > 0 {
			if err := o.clock.Sleep(loadCtx, LoadRetryDelays[attempt-1]); err != nil {
				return o.abandoned(token, err)
			}
		}
		profile, rec, err := o.fetch(loadCtx, clientID)
		if err == nil {
			o.cache.Put(clientID, rec)
			return o.apply(token, profile, rec, false)
		}
		if !o.current(token) || loadCtx.Err() != nil {
			return o.abandoned(token, err)
		}
		lastErr = err
		o.logger.WarnContext(ctx, "load failed",
			"client_id", clientID,
			"attempt", attempt+1,
			"error", err,
		)
		if errors.Is(err, sentinel.ErrNotFound) {
			break
		}
		if attempt == 0 {
			o.showStale(loadCtx, token, clientID)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.token {
		return sentinel.ErrSelectionChanged
	}
	o.phase = PhaseFailed
	o.lastErr = lastErr
	o.logger.ErrorContext(ctx, "load gave up", "client_id", clientID, "stale", o.stale, "error", lastErr)
	return lastErr
}

func (o *Orchestrator) fetch(ctx context.Context, clientID string) (models.ClientProfile, models.ClientFiscalRecord, error) {
	profile, err := o.profiles.Profile(ctx, clientID)
	if err != nil {
		return models.ClientProfile{}, models.ClientFiscalRecord{}, fmt.Errorf("read client profile: %w", err)
	}
	rec, _, err := o.gateway.Read(ctx, clientID)
	if err != nil {
		return models.ClientProfile{}, models.ClientFiscalRecord{}, err
	}
	return profile, rec, nil
}

// apply installs a loaded record as the working copy, merging rule defaults
// into the selected year.
func (o *Orchestrator) apply(token uint64, profile models.ClientProfile, rec models.ClientFiscalRecord, stale bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.token {
		return sentinel.ErrSelectionChanged
	}

	working := rec.Clone()
	working.ClientID = o.clientID
	year := o.year
	if year == "" {
		year = working.SelectedYear
	}
	if !year.IsValid() {
		year = models.YearOf(o.clock.Now())
	}
	working.ObligationsByYear[year] = merge.ReconcileYear(rules.DefaultObligations(profile), working, year)
	working.SelectedYear = year
	o.merged = map[models.Year]bool{year: true}

	o.year = year
	o.profile = profile
	o.record = working
	o.loaded = true
	o.stale = stale
	if !stale {
		o.phase = PhaseReady
		o.lastErr = nil
	}
	return nil
}

// showStale puts a soft-expired cached copy on screen while loading retries.
func (o *Orchestrator) showStale(ctx context.Context, token uint64, clientID string) {
	rec, storedAt, ok := o.cache.GetStale(clientID)
	if !ok {
		return
	}
	profile, err := o.profiles.Profile(ctx, clientID)
	if err != nil {
		return
	}
	if o.apply(token, profile, rec, true) == nil {
		o.logger.WarnContext(ctx, "showing stale cached record", "client_id", clientID, "stored_at", storedAt)
	}
}

func (o *Orchestrator) current(token uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return token == o.token
}

// abandoned maps a cancelled operation to ErrSelectionChanged when the
// selection moved on; results for a stale token are dropped silently.
func (o *Orchestrator) abandoned(token uint64, err error) error {
	if !o.current(token) {
		return sentinel.ErrSelectionChanged
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		o.mu.Lock()
		if token == o.token && o.phase == PhaseLoading {
			o.phase = PhaseFailed
			o.lastErr = err
		}
		o.mu.Unlock()
	}
	return err
}

// SelectYear switches the working year inside the loaded record. Rule
// defaults are merged into a year the first time it is shown. Switching
// years is not an edit.
func (o *Orchestrator) SelectYear(year models.Year) error {
	if !year.IsValid() {
		return fmt.Errorf("invalid year %q", year)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return sentinel.ErrNotLoaded
	}
	if year == o.year {
		return nil
	}
	if !o.merged[year] {
		o.record.ObligationsByYear[year] = merge.ReconcileYear(rules.DefaultObligations(o.profile), o.record, year)
		o.merged[year] = true
	}
	o.record.SelectedYear = year
	o.year = year
	return nil
}

// Close stops autosave and abandons in-flight work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.stopAutosaveLocked()
	if o.selCancel != nil {
		o.selCancel()
	}
	o.mu.Unlock()
	o.baseCancel()
	o.wg.Wait()
}
