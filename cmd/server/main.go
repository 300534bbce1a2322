package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fiscus/internal/obligations"
	"fiscus/internal/obligations/dashboard"
	"fiscus/internal/obligations/gateway"
	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/orchestrator"
	"fiscus/internal/obligations/store"
	"fiscus/internal/platform/config"
	"fiscus/internal/platform/httpserver"
	"fiscus/internal/platform/logger"
	"fiscus/internal/platform/postgres"
	"fiscus/internal/platform/redis"
	"fiscus/pkg/platform/audit"
	"fiscus/pkg/platform/clock"
)

// main wires the obligation engine to its configured store and exposes the
// ops surface: health, metrics and the attestation alert feed.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings {
		log.Warn("configuration value ignored", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type backend struct {
	store    gateway.RemoteStore
	profiles orchestrator.ProfileSource
	health   func(context.Context) error
	close    func() error
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			log.Warn("closing store failed", "error", err)
		}
	}()

	publisher, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("closing audit publisher failed", "error", err)
		}
	}()

	engine, err := obligations.New(be.store, be.profiles, obligations.Config{
		CacheTTL:         cfg.CacheTTL,
		AutosaveInterval: cfg.AutosaveInterval,
		VerifySettle:     cfg.VerifySettle,
		AlertWindow:      cfg.AlertWindow,
	},
		obligations.WithLogger(log),
		obligations.WithMetrics(metrics.New()),
		obligations.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := be.health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "store", string(cfg.Store), "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	dashboard.NewHandler(engine.Feed, clock.Real{}, log).Register(r)

	log.Info("starting fiscus", "store", string(cfg.Store))
	return httpserver.Run(ctx, httpserver.New(cfg.Addr, r), log)
}

func openBackend(ctx context.Context, cfg config.Server) (backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return backend{}, err
		}
		return backend{
			store:    store.NewPostgres(db),
			profiles: store.NewPostgresProfiles(db),
			health:   db.PingContext,
			close:    db.Close,
		}, nil
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return backend{}, err
		}
		if client == nil {
			return backend{}, errors.New("REDIS_URL is required for the redis store")
		}
		return backend{
			store:    store.NewRedis(client),
			profiles: store.NewRedisProfiles(client),
			health:   client.Health,
			close:    client.Close,
		}, nil
	default:
		return backend{
			store:    store.NewMemory(),
			profiles: store.NewMemoryProfiles(),
			health:   func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil
	}
}

func openPublisher(cfg config.Server, log *slog.Logger) (audit.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NewLogPublisher(log), nil
	}
	p, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
	if err != nil {
		return nil, err
	}
	// a broker outage must not slow every save down to the produce timeout
	return audit.NewGuarded(p, 5, time.Minute, clock.Real{}), nil
}
