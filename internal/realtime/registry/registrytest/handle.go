// Package registrytest provides an in-memory Handle for tests.
package registrytest

import (
	"encoding/json"
	"sync"

	"seva/internal/realtime/registry"
	"seva/pkg/protocol"
)

// Handle records frames instead of writing to a socket.
type Handle struct {
	id     string
	userID string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func NewHandle(id, userID string) *Handle {
	return &Handle{id: id, userID: userID}
}

func (h *Handle) ID() string     { return h.id }
func (h *Handle) UserID() string { return h.userID }

func (h *Handle) Send(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return registry.ErrClosed
	}
	if h.full {
		return registry.ErrSendBufferFull
	}
	h.frames = append(h.frames, frame)
	return nil
}

func (h *Handle) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// SetFull makes every later Send fail as if the outbound queue were full.
func (h *Handle) SetFull(full bool) {
	h.mu.Lock()
	h.full = full
	h.mu.Unlock()
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handle) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// Events returns the decoded envelopes received so far, oldest first.
func (h *Handle) Events() []protocol.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(h.frames))
	for _, f := range h.frames {
		var env protocol.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// EventNames is Events reduced to the event field.
func (h *Handle) EventNames() []string {
	events := h.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Event
	}
	return names
}
