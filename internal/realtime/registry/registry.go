// Package registry tracks which live connections belong to which user.
package registry

import (
	"errors"
	"hash/fnv"
	"seva/pkg/logger"
	"seva/pkg/protocol"
	"sync"
	"time"
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Handle is one live connection. Send must never block; a closed handle
// returns ErrClosed.
type Handle interface {
	ID() string
	UserID() string
	Send(frame []byte) error
	Close()
}

// Session is the per-user view across all of that user's devices.
type Session struct {
	UserID      string
	Cell        string
	ConnectedAt time.Time
	Handles     int
}

type Stats struct {
	Users   int `json:"users"`
	Handles int `json:"handles"`
	Shards  int `json:"shards"`
}

type entry struct {
	handles     map[string]Handle
	cell        string
	connectedAt time.Time
}

type shard struct {
	mu    sync.RWMutex
	users map[string]*entry
}

// Registry maps user ids to live handles. Users are spread over independent
// shards so connects and sends for different users rarely contend.
type Registry struct {
	shards []*shard
	log    *logger.Logger
}

func New(shards int, log *logger.Logger) *Registry {
	if shards < 1 {
		shards = 1
	}
	r := &Registry{shards: make([]*shard, shards), log: log}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]*entry)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

func (r *Registry) Register(h Handle) {
	s := r.shardFor(h.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.users[h.UserID()]
	if !ok {
		e = &entry{handles: make(map[string]Handle), connectedAt: time.Now().UTC()}
		s.users[h.UserID()] = e
	}
	e.handles[h.ID()] = h
}

// Unregister removes the handle and reports whether it was the user's last.
func (r *Registry) Unregister(h Handle) bool {
	s := r.shardFor(h.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.users[h.UserID()]
	if !ok {
		return false
	}
	delete(e.handles, h.ID())
	if len(e.handles) == 0 {
		delete(s.users, h.UserID())
		return true
	}
	return false
}

// HandlesFor returns a snapshot of the user's handles.
func (r *Registry) HandlesFor(userID string) []Handle {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.users[userID]
	if !ok {
		return nil
	}
	handles := make([]Handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	return handles
}

func (r *Registry) IsOnline(userID string) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// SendToUser delivers one event to every handle of the user and returns how
// many accepted it. Offline users simply get zero.
func (r *Registry) SendToUser(userID, event string, payload any) int {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		r.log.Error("Failed to encode event", "event", event, "error", err)
		return 0
	}
	return r.SendFrame(userID, frame)
}

func (r *Registry) SendFrame(userID string, frame []byte) int {
	delivered := 0
	for _, h := range r.HandlesFor(userID) {
		if err := h.Send(frame); err != nil {
			r.log.Debug("Dropped frame for handle", "user_id", userID, "handle_id", h.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// SetCell records the user's last known coarse cell. It is a no-op for users
// without a live handle.
func (r *Registry) SetCell(userID, cell string) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.users[userID]; ok {
		e.cell = cell
	}
}

func (r *Registry) Session(userID string) (Session, bool) {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.users[userID]
	if !ok {
		return Session{}, false
	}
	return Session{
		UserID:      userID,
		Cell:        e.cell,
		ConnectedAt: e.connectedAt,
		Handles:     len(e.handles),
	}, true
}

func (r *Registry) Stats() Stats {
	stats := Stats{Shards: len(r.shards)}
	for _, s := range r.shards {
		s.mu.RLock()
		stats.Users += len(s.users)
		for _, e := range s.users {
			stats.Handles += len(e.handles)
		}
		s.mu.RUnlock()
	}
	return stats
}
