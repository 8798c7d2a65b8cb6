package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seva/pkg/config"
	"seva/pkg/contracts"
	apperrors "seva/pkg/errors"
	httputil "seva/pkg/http"
	"seva/pkg/logger"
	"seva/pkg/middleware"
	"seva/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type stubLive struct{}

func (*stubLive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func (*stubLive) Shutdown() {}

type stubHealth struct{}

func (stubHealth) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_ = httputil.WriteSuccess(w, map[string]string{"status": "ok"})
	})
}

type stubAPI struct{}

func (stubAPI) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		p, _ := middleware.PrincipalFromContext(r.Context())
		_ = httputil.WriteSuccess(w, p)
	})
}

type stubAuth struct{}

func (stubAuth) Verify(_ context.Context, token string) (model.Principal, error) {
	if token == "good" {
		return model.Principal{UserID: "alice"}, nil
	}
	return model.Principal{}, apperrors.Unauthorized("Invalid token")
}

func newTestApp(t *testing.T, handlers ...contracts.Handler) *Application {
	t.Helper()
	cfg := &config.Config{
		Log:               logger.Discard(),
		Port:              "0",
		IdempotencyTTL:    time.Minute,
		RequestTimeout:    time.Second,
		MaxRequestSize:    1024,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
	limiter := middleware.NewUserRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.Log)

	a := NewApplication()
	a.SetApp(cfg, Components{
		Live:          &stubLive{},
		Health:        stubHealth{},
		Authenticator: stubAuth{},
		RateLimiter:   limiter,
		Handlers:      handlers,
	})
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		limiter.Stop()
	})
	return a
}

func TestApplication_Routing(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{"health needs no token", "/health", "", http.StatusOK},
		{"api rejects missing token", "/api/v1/whoami", "", http.StatusUnauthorized},
		{"api rejects bad token", "/api/v1/whoami", "bad", http.StatusUnauthorized},
		{"api accepts good token", "/api/v1/whoami", "good", http.StatusOK},
		{"unknown api path still authenticates first", "/api/v1/nothing", "", http.StatusUnauthorized},
		{"websocket endpoint bypasses api auth", "/ws", "", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, stubAPI{})
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			a.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestApplication_HandlersReceivePrincipal(t *testing.T) {
	a := newTestApp(t, stubAPI{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "alice") {
		t.Errorf("expected principal in body, got %s", rr.Body.String())
	}
}
