package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	listingserrors "seva/internal/listings/errors"
	"seva/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newListing(owner string, lat, lng float64) *model.Listing {
	return &model.Listing{
		OwnerID:        owner,
		Title:          "Soup",
		Description:    "Lentil soup",
		Quantity:       "2 litres",
		Location:       model.NewGeoPoint(lat, lng),
		AvailableUntil: t0.Add(time.Hour),
		Status:         model.StatusAvailable,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func TestListingStore_CreateAndRead(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()
	l := newListing("owner", 40.7, -74.0)
	l.IdempotencyKey = "k1"

	require.NoError(t, s.Create(ctx, l))
	require.NotEmpty(t, l.ID)

	got, err := s.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	got.Location.Coordinates[0] = 0
	again, _ := s.FindByID(ctx, l.ID)
	assert.Equal(t, -74.0, again.Location.Lng(), "reads return copies")

	dup := newListing("owner", 40.7, -74.0)
	dup.IdempotencyKey = "k1"
	assert.ErrorIs(t, s.Create(ctx, dup), listingserrors.ErrDuplicateKey)

	byKey, err := s.FindByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, l.ID, byKey.ID)
}

func TestListingStore_FindByIDErrors(t *testing.T) {
	s := NewListingStore()
	_, err := s.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, listingserrors.ErrInvalidID)

	_, err = s.FindByID(context.Background(), "65f1c2a9e4b0a1b2c3d4e5f6")
	assert.ErrorIs(t, err, listingserrors.ErrNotFound)
}

func TestListingStore_ReserveIsExclusive(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()
	l := newListing("owner", 40.7, -74.0)
	require.NoError(t, s.Create(ctx, l))

	const callers = 64
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			if _, err := s.Reserve(ctx, l.ID, user, t0); err == nil {
				mu.Lock()
				winners = append(winners, user)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, listingserrors.ErrPreconditionFailed)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	stored, _ := s.FindByID(ctx, l.ID)
	assert.Equal(t, model.StatusReserved, stored.Status)
	assert.True(t, stored.IsReservedBy(winners[0]))
	require.NotNil(t, stored.ReservedAt)
}

func TestListingStore_ReservePreconditions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		reserver string
		now      time.Time
	}{
		{"owner cannot reserve", "owner", t0},
		{"expired", "bob", t0.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewListingStore()
			l := newListing("owner", 40.7, -74.0)
			require.NoError(t, s.Create(ctx, l))

			_, err := s.Reserve(ctx, l.ID, tt.reserver, tt.now)
			assert.ErrorIs(t, err, listingserrors.ErrPreconditionFailed)
		})
	}
}

func TestListingStore_Complete(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()
	l := newListing("owner", 40.7, -74.0)
	require.NoError(t, s.Create(ctx, l))

	_, err := s.Complete(ctx, l.ID, "owner", t0)
	assert.ErrorIs(t, err, listingserrors.ErrPreconditionFailed, "available listings cannot complete")

	_, err = s.Reserve(ctx, l.ID, "bob", t0)
	require.NoError(t, err)

	_, err = s.Complete(ctx, l.ID, "mallory", t0)
	assert.ErrorIs(t, err, listingserrors.ErrPreconditionFailed, "strangers cannot complete")

	done, err := s.Complete(ctx, l.ID, "bob", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = s.Complete(ctx, l.ID, "owner", t0)
	assert.ErrorIs(t, err, listingserrors.ErrPreconditionFailed, "completed is terminal")
	_, err = s.Reserve(ctx, l.ID, "carol", t0)
	assert.ErrorIs(t, err, listingserrors.ErrPreconditionFailed)
}

func TestListingStore_FindNearby(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()

	near := newListing("a", 40.7128, -74.0060)
	nearer := newListing("b", 40.7130, -74.0061)
	far := newListing("c", 41.5, -74.0)
	expired := newListing("d", 40.7128, -74.0060)
	expired.AvailableUntil = t0.Add(-time.Minute)
	for _, l := range []*model.Listing{near, nearer, far, expired} {
		require.NoError(t, s.Create(ctx, l))
	}

	got, err := s.FindNearby(ctx, 40.7131, -74.0061, 5000, t0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, nearer.ID, got[0].ID)
	assert.Equal(t, near.ID, got[1].ID)

	limited, _ := s.FindNearby(ctx, 40.7131, -74.0061, 5000, t0, 1)
	assert.Len(t, limited, 1)
}

func TestListingStore_FindRecentByOwnerTitle(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()
	l := newListing("owner", 40.7, -74.0)
	require.NoError(t, s.Create(ctx, l))

	got, err := s.FindRecentByOwnerTitle(ctx, "owner", "Soup", t0.Add(-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)

	_, err = s.FindRecentByOwnerTitle(ctx, "owner", "Soup", t0.Add(time.Second))
	assert.ErrorIs(t, err, listingserrors.ErrNotFound)
	_, err = s.FindRecentByOwnerTitle(ctx, "someone-else", "Soup", t0.Add(-time.Minute))
	assert.ErrorIs(t, err, listingserrors.ErrNotFound)

	got, err = s.FindRecentByOwnerTitle(ctx, "owner", "SOUP", t0.Add(-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
}

func TestListingStore_FindByOwner(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()
	older := newListing("owner", 40.7, -74.0)
	newer := newListing("owner", 40.7, -74.0)
	newer.CreatedAt = t0.Add(time.Minute)
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))
	require.NoError(t, s.Create(ctx, newListing("someone-else", 40.7, -74.0)))

	got, err := s.FindByOwner(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	got, err = s.FindByOwner(ctx, "owner", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.FindByOwner(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
