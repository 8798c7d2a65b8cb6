package health

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"seva/internal/realtime/presence"
	httputil "seva/pkg/http"
	kafka_middleware "seva/pkg/kafka/middleware"
	"seva/pkg/logger"
)

const pingTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type StatsResponse struct {
	Presence presence.Stats                    `json:"presence"`
	Events   *kafka_middleware.MetricsSnapshot `json:"events,omitempty"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatsSource interface {
	Stats() presence.Stats
}

type EventMetrics interface {
	Metrics() kafka_middleware.MetricsSnapshot
}

type HealthHandler struct {
	db     Pinger
	hub    StatsSource
	events EventMetrics
	log    *logger.Logger
}

// NewHealthHandler builds the probe endpoints. events may be nil when domain
// events are disabled.
func NewHealthHandler(db Pinger, hub StatsSource, events EventMetrics, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		hub:    hub,
		events: events,
		log:    log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unavailable",
			Database: "error",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "ready",
		Database: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := StatsResponse{Presence: h.hub.Stats()}
	if h.events != nil {
		snapshot := h.events.Metrics()
		resp.Events = &snapshot
	}
	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Stats", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/stats", h.Stats)
}
