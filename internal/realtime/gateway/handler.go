// Package gateway terminates live connections: it authenticates the
// handshake, attaches the socket to the presence hub and dispatches frames.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"seva/internal/auth"
	"seva/internal/realtime/presence"
	"seva/internal/realtime/ws"
	usersrepo "seva/internal/users/repository"
	"seva/pkg/config"
	apperrors "seva/pkg/errors"
	httputil "seva/pkg/http"
	"seva/pkg/logger"
	"seva/pkg/model"
	"seva/pkg/protocol"

	"github.com/gorilla/websocket"
)

const locationWriteTimeout = 5 * time.Second

type Verifier interface {
	Verify(ctx context.Context, token string) (model.Principal, error)
}

type Gateway struct {
	verifier   Verifier
	hub        *presence.Hub
	users      usersrepo.UserRepository
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       ws.Options
	log        *logger.Logger

	mu    sync.Mutex
	conns map[*ws.Conn]struct{}
}

func NewGateway(cfg *config.Config, verifier Verifier, hub *presence.Hub, users usersrepo.UserRepository, dispatcher *Dispatcher) *Gateway {
	return &Gateway{
		verifier:   verifier,
		hub:        hub,
		users:      users,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		opts: ws.Options{
			SendBuffer:   cfg.WSSendBuffer,
			ReadLimit:    cfg.WSReadLimit,
			PingInterval: cfg.WSPingInterval,
			PongWait:     cfg.WSPongWait,
			WriteWait:    cfg.WSWriteWait,
		},
		log:   cfg.Log,
		conns: make(map[*ws.Conn]struct{}),
	}
}

// originChecker allows the configured origins. "*" allows any origin and
// an empty list falls back to gorilla's same-host check.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP authenticates before upgrading, so a rejected handshake leaves
// no trace in the registry.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := g.verifier.Verify(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		g.log.Warn("Live connection rejected", "remote_addr", r.RemoteAddr, "error", err)
		_ = httputil.WriteError(w, err)
		return
	}

	coords, err := parseCoordinates(r)
	if err != nil {
		_ = httputil.WriteError(w, err)
		return
	}

	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "user_id", principal.UserID, "error", err)
		return
	}

	conn := ws.NewConn(socket, principal.UserID, g.opts, g.log)
	g.track(conn)
	defer g.untrack(conn)

	cell := g.hub.Attach(conn, coords)
	defer g.hub.Detach(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cell != "" {
		locCtx, locCancel := context.WithTimeout(ctx, locationWriteTimeout)
		storeLocation(locCtx, g.users, g.log, principal.UserID, *coords)
		locCancel()
	}

	g.log.Info("Live connection established", "user_id", principal.UserID, "handle_id", conn.ID(), "cell", cell)

	frame, err := protocol.Encode(protocol.EventConnected, protocol.ConnectedPayload{UserID: principal.UserID, Cell: cell})
	if err == nil {
		_ = conn.Send(frame)
	}

	session := &Session{Handle: conn, Principal: principal}
	conn.ReadLoop(func(frame []byte) {
		g.dispatcher.Dispatch(ctx, session, frame)
	})

	g.log.Info("Live connection closed", "user_id", principal.UserID, "handle_id", conn.ID())
}

// parseCoordinates reads optional lat/lng query parameters. Both or
// neither must be present.
func parseCoordinates(r *http.Request) (*model.Coordinates, error) {
	lat, hasLat, err := httputil.QueryFloat(r, "lat")
	if err != nil {
		return nil, err
	}
	lng, hasLng, err := httputil.QueryFloat(r, "lng")
	if err != nil {
		return nil, err
	}
	if hasLat != hasLng {
		return nil, apperrors.InvalidInput("lat and lng must be provided together")
	}
	if !hasLat {
		return nil, nil
	}
	return &model.Coordinates{Lat: lat, Lng: lng}, nil
}

func (g *Gateway) track(c *ws.Conn) {
	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) untrack(c *ws.Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
}

// Shutdown closes every live connection. Hijacked sockets are invisible to
// http.Server.Shutdown, so the application calls this first.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*ws.Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	g.log.Info("Live connections closed", "count", len(conns))
}
