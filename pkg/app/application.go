package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"seva/internal/auth"
	"seva/internal/events"
	"seva/pkg/config"
	"seva/pkg/contracts"
	"seva/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// LiveHandler terminates websocket connections. Shutdown closes every
// hijacked socket, which http.Server.Shutdown does not track.
type LiveHandler interface {
	http.Handler
	Shutdown()
}

type Components struct {
	Live          LiveHandler
	Health        contracts.Handler
	Authenticator middleware.Authenticator
	RateLimiter   *middleware.UserRateLimiter
	Events        events.Publisher
	Handlers      []contracts.Handler
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	components       Components
	idempotencyStore *middleware.InMemoryIdempotencyStore
	healthHandler    http.Handler
	liveHandler      http.Handler
	appHttpHandler   http.Handler
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, components Components) {
	a.cfg = cfg
	a.components = components
	a.setHealthHandler(cfg)
	a.setLiveHandler(cfg)
	a.setAppHandler(cfg)
	a.setAppServer()
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(cfg *config.Config) {
	healthRouter := httprouter.New()
	a.components.Health.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

// setLiveHandler mounts the websocket endpoint outside the request timeout,
// which would otherwise cut every long-lived connection.
func (a *Application) setLiveHandler(cfg *config.Config) {
	var liveHTTPHandler http.Handler = a.components.Live
	liveHTTPHandler = middleware.RequestLogging(cfg.Log)(liveHTTPHandler)
	liveHTTPHandler = middleware.Recovery(cfg.Log)(liveHTTPHandler)
	a.liveHandler = liveHTTPHandler
	cfg.Log.Info("Live endpoint configured", "path", "/ws")
}

func (a *Application) setAppHandler(cfg *config.Config) {
	appRouter := httprouter.New()
	for _, h := range a.components.Handlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)

	// Middleware order: Recovery → Logging → MaxSize → ContentType → Auth → RateLimit → Timeout → Idempotency → Router
	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, middleware.IdempotencyHeader)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.UserRateLimit(a.components.RateLimiter)(appHttpHandler)
	appHttpHandler = middleware.Auth(a.components.Authenticator, auth.TokenFromRequest, cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(cfg.MaxRequestSize)(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/stats", a.healthHandler)
	mux.Handle("/ws", a.liveHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.components.Live.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	a.idempotencyStore.Stop()
	a.components.RateLimiter.Stop()
	if a.components.Events != nil {
		if err := a.components.Events.Close(); err != nil {
			a.cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
