package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seva/internal/events"
	listingserrors "seva/internal/listings/errors"
	"seva/pkg/db"
	apperrors "seva/pkg/errors"
	"seva/pkg/model"
	"seva/pkg/protocol"
)

const (
	clientKeyPrefix = "client"
	autoKeyPrefix   = "auto"
)

func (s *listingService) CreateAndBroadcast(ctx context.Context, ownerID string, input *model.ListingInput) (*model.Listing, error) {
	if ownerID == "" {
		return nil, apperrors.Unauthorized("Authenticated owner is required")
	}

	now := s.now()
	if input != nil {
		s.sanitize(input)
	}
	if err := s.validate(input, now); err != nil {
		return nil, err
	}

	key := s.idempotencyKey(ownerID, input, now)
	if input.IdempotencyKey == "" {
		if existing := s.findRecentDuplicate(ctx, ownerID, input.Title, now); existing != nil {
			s.cfg.Log.Info("Duplicate listing submission resolved",
				"id", existing.ID,
				"owner_id", ownerID,
				"reason", "dedup_window",
			)
			return existing, nil
		}
	}

	listing := newListing(ownerID, input, key, now)
	attempts := 0
	err := db.RetryOnce(ctx, func(ctx context.Context) error {
		attempts++
		return s.repo.Create(ctx, listing)
	})

	switch {
	case err == nil:
	case errors.Is(err, listingserrors.ErrDuplicateKey):
		existing, findErr := s.repo.FindByIdempotencyKey(ctx, key)
		if findErr != nil {
			s.cfg.Log.Error("Failed to load listing for duplicate key", "owner_id", ownerID, "error", findErr)
			return nil, apperrors.Persistence("Failed to save listing", findErr)
		}
		// A duplicate on the retry whose timestamp is ours means the first
		// insert landed before its error came back.
		if attempts == 1 || !existing.CreatedAt.Equal(listing.CreatedAt) {
			s.cfg.Log.Info("Duplicate listing submission resolved",
				"id", existing.ID,
				"owner_id", ownerID,
				"reason", "idempotency_key",
			)
			return existing, nil
		}
		listing = existing
	default:
		s.cfg.Log.Error("Failed to create listing", "owner_id", ownerID, "attempts", attempts, "error", err)
		return nil, apperrors.Persistence("Failed to save listing", err)
	}

	s.broadcast(ctx, listing)
	return listing, nil
}

// idempotencyKey scopes a client key to its owner, or derives one from the
// title and the current dedup bucket. An empty key disables the unique index.
func (s *listingService) idempotencyKey(ownerID string, input *model.ListingInput, now time.Time) string {
	if input.IdempotencyKey != "" {
		return fmt.Sprintf("%s:%s:%s", clientKeyPrefix, ownerID, input.IdempotencyKey)
	}
	window := s.cfg.ListingDedupWindow
	if window <= 0 {
		return ""
	}
	bucket := now.UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("%s:%s:%s:%d", autoKeyPrefix, ownerID, strings.ToLower(input.Title), bucket)
}

// findRecentDuplicate catches resubmissions that straddle a bucket boundary.
// Lookup failures are not fatal; the derived key still guards the insert.
func (s *listingService) findRecentDuplicate(ctx context.Context, ownerID, title string, now time.Time) *model.Listing {
	window := s.cfg.ListingDedupWindow
	if window <= 0 {
		return nil
	}
	existing, err := s.repo.FindRecentByOwnerTitle(ctx, ownerID, title, now.Add(-window))
	if err != nil {
		if !errors.Is(err, listingserrors.ErrNotFound) {
			s.cfg.Log.Warn("Failed to check for duplicate listing", "owner_id", ownerID, "error", err)
		}
		return nil
	}
	return existing
}

func newListing(ownerID string, input *model.ListingInput, key string, now time.Time) *model.Listing {
	return &model.Listing{
		OwnerID:            ownerID,
		Title:              input.Title,
		Description:        input.Description,
		Quantity:           input.Quantity,
		FoodType:           input.FoodType,
		PhotoURL:           input.PhotoURL,
		Location:           *input.Location,
		PickupInstructions: input.PickupInstructions,
		AvailableUntil:     input.AvailableUntil.UTC().Truncate(time.Millisecond),
		Notes:              input.Notes,
		FoodSafety:         input.FoodSafety,
		Status:             model.StatusAvailable,
		IdempotencyKey:     key,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// broadcast runs every post-persistence side effect. None of them can fail
// the create; each failure is logged and the next step still runs.
func (s *listingService) broadcast(ctx context.Context, listing *model.Listing) {
	owner := model.OwnerSummary{ID: listing.OwnerID}
	if user, err := s.users.FindByID(ctx, listing.OwnerID); err == nil {
		owner.Name = user.Name
	} else {
		s.cfg.Log.Warn("Failed to load listing owner", "owner_id", listing.OwnerID, "error", err)
	}

	lat, lng := listing.Location.Lat(), listing.Location.Lng()
	delivered := s.notifier.BroadcastNear(lat, lng, protocol.EventListingAdded,
		protocol.ListingAddedPayload{Listing: listing, Owner: owner}, listing.OwnerID)

	notified := 0
	nearby, err := s.users.FindNearby(ctx, lat, lng, s.cfg.NotifyRadiusMeters, listing.OwnerID, s.cfg.NotifyMaxUsers)
	if err != nil {
		s.cfg.Log.Warn("Failed to find nearby users", "listing_id", listing.ID, "error", err)
	}
	if len(nearby) > 0 {
		notification := model.Notification{
			Type:    model.NotificationNewListing,
			Message: fmt.Sprintf("New food available nearby: %s", listing.Title),
			Data: map[string]any{
				"listing_id": listing.ID,
				"title":      listing.Title,
				"owner":      owner,
			},
			Timestamp: s.now(),
		}
		for _, userID := range nearby {
			if s.notifier.SendToUser(userID, protocol.EventNotification, notification) > 0 {
				notified++
			}
		}
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.TypeListingCreated,
		Key:        listing.ID,
		ActorID:    listing.OwnerID,
		OccurredAt: listing.CreatedAt,
		Payload:    listing,
	})

	s.cfg.Log.Info("Listing created and broadcast",
		"id", listing.ID,
		"owner_id", listing.OwnerID,
		"delivered", delivered,
		"nearby_users", len(nearby),
		"notified", notified,
	)
}
