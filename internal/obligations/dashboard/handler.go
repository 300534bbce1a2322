package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fiscus/pkg/platform/clock"
	"fiscus/pkg/platform/httputil"
)

// Service is the alert feed as seen by the HTTP layer.
type Service interface {
	Alerts(ctx context.Context, clientIDs []string, now time.Time) (Result, error)
}

// Handler serves the alert feed over HTTP.
type Handler struct {
	service Service
	clock   clock.Clock
	logger  *slog.Logger
}

func NewHandler(service Service, clk clock.Clock, logger *slog.Logger) *Handler {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, clock: clk, logger: logger}
}

// Register mounts the feed on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/alerts", h.HandleAlerts)
}

// HandleAlerts handles GET /alerts?client=<id>&client=<id>.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids := r.URL.Query()["client"]
	if len(ids) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeBadRequest, "at least one client parameter is required")
		return
	}

	start := time.Now()
	res, err := h.service.Alerts(ctx, ids, h.clock.Now())
	if err != nil {
		h.logger.ErrorContext(ctx, "alert feed failed", "clients", len(ids), "error", err)
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeUnavailable, err.Error())
		return
	}

	h.logger.InfoContext(ctx, "alert feed served",
		"clients", len(ids),
		"alerts", len(res.Alerts),
		"failed", len(res.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}
