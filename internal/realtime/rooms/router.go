// Package rooms groups live handles by coarse geographic cell.
package rooms

import (
	"seva/internal/realtime/registry"
	"seva/pkg/logger"
	"seva/pkg/protocol"
	"sync"
)

type Stats struct {
	Cells   int `json:"cells"`
	Members int `json:"members"`
}

// Router keeps each handle in at most one cell.
type Router struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]registry.Handle
	cellOf map[string]string
	log    *logger.Logger
}

func NewRouter(log *logger.Logger) *Router {
	return &Router{
		rooms:  make(map[string]map[string]registry.Handle),
		cellOf: make(map[string]string),
		log:    log,
	}
}

// Join places h in cell, leaving its previous cell if any. It returns the
// previous cell, empty when the handle had none.
func (r *Router) Join(h registry.Handle, cell string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.cellOf[h.ID()]
	if prev == cell {
		return prev
	}
	if prev != "" {
		r.removeLocked(h.ID(), prev)
	}

	members, ok := r.rooms[cell]
	if !ok {
		members = make(map[string]registry.Handle)
		r.rooms[cell] = members
	}
	members[h.ID()] = h
	r.cellOf[h.ID()] = cell
	return prev
}

// Leave removes h from cell. It is a no-op if h is elsewhere.
func (r *Router) Leave(h registry.Handle, cell string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cellOf[h.ID()] == cell {
		r.removeLocked(h.ID(), cell)
	}
}

func (r *Router) LeaveAll(h registry.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cell, ok := r.cellOf[h.ID()]; ok {
		r.removeLocked(h.ID(), cell)
	}
}

func (r *Router) removeLocked(handleID, cell string) {
	delete(r.cellOf, handleID)
	members := r.rooms[cell]
	delete(members, handleID)
	if len(members) == 0 {
		delete(r.rooms, cell)
	}
}

func (r *Router) CellOf(h registry.Handle) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cellOf[h.ID()]
}

func (r *Router) Members(cell string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[cell])
}

// Publish sends one event to every handle in cell except those owned by the
// excluded users, returning the number of handles that accepted it.
func (r *Router) Publish(cell, event string, payload any, exceptUserIDs ...string) int {
	return r.PublishMany([]string{cell}, event, payload, exceptUserIDs...)
}

// PublishMany is Publish over several cells with a single encode. A handle
// sits in one cell and repeated cells are skipped, so it receives the event
// at most once.
func (r *Router) PublishMany(cells []string, event string, payload any, exceptUserIDs ...string) int {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		r.log.Error("Failed to encode room event", "event", event, "error", err)
		return 0
	}

	except := make(map[string]struct{}, len(exceptUserIDs))
	for _, id := range exceptUserIDs {
		except[id] = struct{}{}
	}

	var targets []registry.Handle
	visited := make(map[string]struct{}, len(cells))
	r.mu.RLock()
	for _, cell := range cells {
		if _, dup := visited[cell]; dup {
			continue
		}
		visited[cell] = struct{}{}
		for _, h := range r.rooms[cell] {
			if _, skip := except[h.UserID()]; skip {
				continue
			}
			targets = append(targets, h)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, h := range targets {
		if err := h.Send(frame); err != nil {
			r.log.Debug("Dropped room frame", "event", event, "handle_id", h.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Cells: len(r.rooms), Members: len(r.cellOf)}
}
