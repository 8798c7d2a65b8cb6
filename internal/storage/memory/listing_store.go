// Package memory implements the repositories in process, for local runs and
// tests. Every write is atomic under the store's lock, which gives the
// conditional transitions the same winner-takes-all semantics as MongoDB.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	listingserrors "seva/internal/listings/errors"
	"seva/pkg/geo"
	"seva/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]*model.Listing
	byKey    map[string]string
}

func NewListingStore() *ListingStore {
	return &ListingStore{
		listings: make(map[string]*model.Listing),
		byKey:    make(map[string]string),
	}
}

func cloneListing(l *model.Listing) *model.Listing {
	c := *l
	c.Location.Coordinates = append([]float64(nil), l.Location.Coordinates...)
	if l.ReservedBy != nil {
		v := *l.ReservedBy
		c.ReservedBy = &v
	}
	if l.ReservedAt != nil {
		v := *l.ReservedAt
		c.ReservedAt = &v
	}
	if l.CompletedAt != nil {
		v := *l.CompletedAt
		c.CompletedAt = &v
	}
	if l.FoodSafety != nil {
		fs := *l.FoodSafety
		fs.Allergens = append([]string(nil), l.FoodSafety.Allergens...)
		fs.DietaryInfo = append([]string(nil), l.FoodSafety.DietaryInfo...)
		c.FoodSafety = &fs
	}
	return &c
}

func (s *ListingStore) Create(ctx context.Context, listing *model.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if listing.IdempotencyKey != "" {
		if _, exists := s.byKey[listing.IdempotencyKey]; exists {
			return listingserrors.ErrDuplicateKey
		}
	}

	listing.ID = primitive.NewObjectID().Hex()
	s.listings[listing.ID] = cloneListing(listing)
	if listing.IdempotencyKey != "" {
		s.byKey[listing.IdempotencyKey] = listing.ID
	}
	return nil
}

func (s *ListingStore) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, listingserrors.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, listingserrors.ErrNotFound
	}
	return cloneListing(l), nil
}

func (s *ListingStore) FindByIdempotencyKey(ctx context.Context, key string) (*model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, listingserrors.ErrNotFound
	}
	return cloneListing(s.listings[id]), nil
}

func (s *ListingStore) FindRecentByOwnerTitle(ctx context.Context, ownerID, title string, since time.Time) (*model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *model.Listing
	for _, l := range s.listings {
		if l.OwnerID != ownerID || !strings.EqualFold(l.Title, title) || l.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || l.CreatedAt.After(newest.CreatedAt) {
			newest = l
		}
	}
	if newest == nil {
		return nil, listingserrors.ErrNotFound
	}
	return cloneListing(newest), nil
}

func (s *ListingStore) FindByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Listing, 0)
	for _, l := range s.listings {
		if l.OwnerID == ownerID {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ListingStore) Reserve(ctx context.Context, id, reserverID string, now time.Time) (*model.Listing, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, listingserrors.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok || l.Status != model.StatusAvailable || !l.AvailableUntil.After(now) || l.OwnerID == reserverID {
		return nil, listingserrors.ErrPreconditionFailed
	}

	reservedBy, reservedAt := reserverID, now
	l.Status = model.StatusReserved
	l.ReservedBy = &reservedBy
	l.ReservedAt = &reservedAt
	l.UpdatedAt = now
	return cloneListing(l), nil
}

func (s *ListingStore) Complete(ctx context.Context, id, actorID string, now time.Time) (*model.Listing, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, listingserrors.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok || l.Status != model.StatusReserved || (l.OwnerID != actorID && !l.IsReservedBy(actorID)) {
		return nil, listingserrors.ErrPreconditionFailed
	}

	completedAt := now
	l.Status = model.StatusCompleted
	l.CompletedAt = &completedAt
	l.UpdatedAt = now
	return cloneListing(l), nil
}

func (s *ListingStore) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, now time.Time, limit int) ([]*model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		listing  *model.Listing
		distance float64
	}
	var hits []hit
	for _, l := range s.listings {
		if l.Status != model.StatusAvailable || !l.AvailableUntil.After(now) {
			continue
		}
		d := geo.DistanceMeters(lat, lng, l.Location.Lat(), l.Location.Lng())
		if d <= radiusMeters {
			hits = append(hits, hit{listing: l, distance: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	out := make([]*model.Listing, 0, len(hits))
	for _, h := range hits {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, cloneListing(h.listing))
	}
	return out, nil
}
