// Package obligations assembles the obligation engine: one migrator, gateway,
// freshness cache and alert feed shared by every editing session.
package obligations

import (
	"fmt"
	"log/slog"
	"time"

	"fiscus/internal/obligations/cache"
	"fiscus/internal/obligations/dashboard"
	"fiscus/internal/obligations/gateway"
	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/migrate"
	"fiscus/internal/obligations/orchestrator"
	"fiscus/pkg/platform/audit"
	"fiscus/pkg/platform/clock"
)

// Config tunes the engine. Zero values select the package defaults.
type Config struct {
	CacheTTL         time.Duration
	AutosaveInterval time.Duration
	VerifySettle     time.Duration
	AlertWindow      time.Duration
}

type Engine struct {
	Gateway *gateway.Gateway
	Cache   *cache.FreshnessCache
	Feed    *dashboard.Feed

	profiles orchestrator.ProfileSource
	autosave time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    clock.Clock
	audit    audit.Publisher
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(e *Engine) {
		e.audit = p
	}
}

func New(store gateway.RemoteStore, profiles orchestrator.ProfileSource, cfg Config, opts ...Option) (*Engine, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile source is required")
	}
	e := &Engine{
		profiles: profiles,
		autosave: cfg.AutosaveInterval,
		logger:   slog.New(slog.DiscardHandler),
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.autosave == 0 {
		e.autosave = orchestrator.DefaultAutosaveInterval
	}

	migrator := migrate.New(
		migrate.WithLogger(e.logger),
		migrate.WithMetrics(e.metrics),
		migrate.WithClock(e.clock),
	)
	gwOpts := []gateway.Option{
		gateway.WithLogger(e.logger),
		gateway.WithMetrics(e.metrics),
		gateway.WithClock(e.clock),
	}
	if cfg.VerifySettle > 0 {
		gwOpts = append(gwOpts, gateway.WithSettleDelay(cfg.VerifySettle))
	}
	gw, err := gateway.New(store, migrator, gwOpts...)
	if err != nil {
		return nil, err
	}
	e.Gateway = gw

	cacheOpts := []cache.Option{cache.WithClock(e.clock), cache.WithMetrics(e.metrics)}
	if cfg.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(cfg.CacheTTL))
	}
	e.Cache = cache.New(cacheOpts...)

	feed, err := dashboard.New(gw, e.Cache,
		dashboard.WithLogger(e.logger),
		dashboard.WithAlertWindow(cfg.AlertWindow),
	)
	if err != nil {
		return nil, err
	}
	e.Feed = feed
	return e, nil
}

// NewSession starts an editing session sharing the engine's gateway and
// cache. Options given here override the engine defaults.
func (e *Engine) NewSession(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	base := []orchestrator.Option{
		orchestrator.WithLogger(e.logger),
		orchestrator.WithMetrics(e.metrics),
		orchestrator.WithClock(e.clock),
		orchestrator.WithAutosaveInterval(e.autosave),
	}
	if e.audit != nil {
		base = append(base, orchestrator.WithAuditPublisher(e.audit))
	}
	return orchestrator.New(e.Gateway, e.Cache, e.profiles, append(base, opts...)...)
}
