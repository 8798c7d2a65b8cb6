// Package presence ties the connection registry and the geo rooms together so
// a handle's lifecycle updates both indices consistently.
package presence

import (
	"seva/internal/realtime/registry"
	"seva/internal/realtime/rooms"
	"seva/pkg/geo"
	"seva/pkg/logger"
	"seva/pkg/model"
	"sync"
)

type Stats struct {
	Registry registry.Stats `json:"registry"`
	Rooms    rooms.Stats    `json:"rooms"`
}

type Hub struct {
	mu       sync.Mutex
	registry *registry.Registry
	router   *rooms.Router
	grid     *geo.Grid
	log      *logger.Logger
}

func NewHub(reg *registry.Registry, router *rooms.Router, grid *geo.Grid, log *logger.Logger) *Hub {
	return &Hub{registry: reg, router: router, grid: grid, log: log}
}

// Attach registers h and, when coordinates are known, places it in their
// cell. It returns the cell joined or "".
func (h *Hub) Attach(handle registry.Handle, coords *model.Coordinates) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.Register(handle)
	if coords == nil || !geo.ValidCoordinates(coords.Lat, coords.Lng) {
		return ""
	}
	return h.joinLocked(handle, *coords)
}

// Move re-homes h after a location update. Invalid coordinates leave the
// handle where it was.
func (h *Hub) Move(handle registry.Handle, coords model.Coordinates) (string, bool) {
	if !geo.ValidCoordinates(coords.Lat, coords.Lng) {
		return h.router.CellOf(handle), false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinLocked(handle, coords), true
}

func (h *Hub) joinLocked(handle registry.Handle, coords model.Coordinates) string {
	cell := h.grid.Cell(coords.Lat, coords.Lng)
	if prev := h.router.Join(handle, cell); prev != cell {
		h.log.Debug("Handle joined cell", "user_id", handle.UserID(), "handle_id", handle.ID(), "cell", cell, "previous", prev)
	}
	h.registry.SetCell(handle.UserID(), cell)
	return cell
}

// Detach closes h before removing it, so a concurrent publish that already
// holds a reference can no longer deliver to it.
func (h *Hub) Detach(handle registry.Handle) {
	handle.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.router.LeaveAll(handle)
	if last := h.registry.Unregister(handle); last {
		h.log.Debug("User went offline", "user_id", handle.UserID())
	}
}

// SendToUser delivers to every live handle of the user.
func (h *Hub) SendToUser(userID, event string, payload any) int {
	return h.registry.SendToUser(userID, event, payload)
}

// BroadcastNear publishes to the cells covering a point, skipping the
// excluded users' handles.
func (h *Hub) BroadcastNear(lat, lng float64, event string, payload any, exceptUserIDs ...string) int {
	if !geo.ValidCoordinates(lat, lng) {
		return 0
	}
	return h.router.PublishMany(h.grid.Cover(lat, lng), event, payload, exceptUserIDs...)
}

func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

func (h *Hub) Stats() Stats {
	return Stats{Registry: h.registry.Stats(), Rooms: h.router.Stats()}
}
