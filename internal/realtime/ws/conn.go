// Package ws adapts a gorilla websocket into a registry.Handle with a single
// bounded outbound queue drained by one writer goroutine.
package ws

import (
	"seva/internal/realtime/registry"
	"seva/pkg/logger"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	SendBuffer   int
	ReadLimit    int64
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	opts   Options
	log    *logger.Logger

	mu     sync.RWMutex
	out    chan []byte
	closed bool
	done   chan struct{}
}

// NewConn wraps an upgraded socket and starts its write pump.
func NewConn(socket *websocket.Conn, userID string, opts Options, log *logger.Logger) *Conn {
	c := &Conn{
		id:     uuid.New().String(),
		userID: userID,
		ws:     socket,
		opts:   opts,
		out:    make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
	}
	c.log = log.With("handle_id", c.id, "user_id", userID)
	go c.writePump()
	return c
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Send enqueues a frame without blocking. A connection whose queue is full
// is too slow to keep up and gets closed.
func (c *Conn) Send(frame []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return registry.ErrClosed
	}
	select {
	case c.out <- frame:
		c.mu.RUnlock()
		return nil
	default:
	}
	c.mu.RUnlock()

	c.log.Warn("Closing slow connection", "buffer", c.opts.SendBuffer)
	c.Close()
	return registry.ErrSendBufferFull
}

// Close stops accepting frames. The write pump flushes what is queued, sends
// a close frame and tears down the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

// Done is closed once the socket has been torn down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case frame, ok := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// ReadLoop hands each inbound text frame to onFrame, in order, until the
// peer goes away or the socket is closed.
func (c *Conn) ReadLoop(onFrame func(frame []byte)) {
	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Info("Connection closed unexpectedly", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		onFrame(data)
	}
}
