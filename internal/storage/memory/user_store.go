package memory

import (
	"context"
	"sort"
	"sync"

	userserrors "seva/internal/users/errors"
	"seva/pkg/geo"
	"seva/pkg/model"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.Location != nil {
		loc := *u.Location
		loc.Coordinates = append([]float64(nil), u.Location.Coordinates...)
		c.Location = &loc
	}
	return &c
}

// Put inserts or replaces a user. Accounts are owned elsewhere, so this is
// how local runs and tests seed them.
func (s *UserStore) Put(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = cloneUser(user)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}

func (s *UserStore) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, excludeID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		id       string
		distance float64
	}
	var hits []hit
	for id, u := range s.users {
		if id == excludeID || u.Location == nil || len(u.Location.Coordinates) != 2 {
			continue
		}
		d := geo.DistanceMeters(lat, lng, u.Location.Lat(), u.Location.Lng())
		if d <= radiusMeters {
			hits = append(hits, hit{id: id, distance: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, h.id)
	}
	return ids, nil
}

func (s *UserStore) UpdateLocation(ctx context.Context, id string, location model.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return userserrors.ErrNotFound
	}
	loc := location
	loc.Coordinates = append([]float64(nil), location.Coordinates...)
	u.Location = &loc
	return nil
}
