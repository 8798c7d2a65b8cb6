package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"seva/internal/realtime/presence"
	"seva/internal/realtime/registry"
	kafka_middleware "seva/pkg/kafka/middleware"
	"seva/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubStats struct{ stats presence.Stats }

func (s stubStats) Stats() presence.Stats { return s.stats }

type stubMetrics struct{}

func (stubMetrics) Metrics() kafka_middleware.MetricsSnapshot {
	return kafka_middleware.MetricsSnapshot{Published: 3, Failed: 1, AvgPublishDuration: "2ms"}
}

func serve(h *HealthHandler, path string) *httptest.ResponseRecorder {
	router := httprouter.New()
	h.RegisterRoutes(router)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"database reachable", nil, http.StatusOK, "ready"},
		{"database down", errors.New("no reachable servers"), http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(stubPinger{err: tt.pingErr}, stubStats{}, nil, logger.Discard())
			rr := serve(h, "/ready")

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, resp.Status)
			}
		})
	}
}

func TestHealth_AlwaysOK(t *testing.T) {
	h := NewHealthHandler(stubPinger{err: errors.New("down")}, stubStats{}, nil, logger.Discard())
	if rr := serve(h, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestStats(t *testing.T) {
	stats := presence.Stats{Registry: registry.Stats{Users: 2, Handles: 3, Shards: 8}}

	t.Run("without events", func(t *testing.T) {
		rr := serve(NewHealthHandler(stubPinger{}, stubStats{stats}, nil, logger.Discard()), "/stats")
		var resp StatsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Presence.Registry.Handles != 3 {
			t.Errorf("expected 3 handles, got %d", resp.Presence.Registry.Handles)
		}
		if resp.Events != nil {
			t.Errorf("expected no events section, got %+v", resp.Events)
		}
	})

	t.Run("with events", func(t *testing.T) {
		rr := serve(NewHealthHandler(stubPinger{}, stubStats{stats}, stubMetrics{}, logger.Discard()), "/stats")
		var resp StatsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Events == nil || resp.Events.Published != 3 {
			t.Errorf("expected published=3, got %+v", resp.Events)
		}
	})
}
