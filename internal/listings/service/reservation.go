package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seva/internal/events"
	listingserrors "seva/internal/listings/errors"
	"seva/pkg/db"
	apperrors "seva/pkg/errors"
	"seva/pkg/model"
	"seva/pkg/protocol"
)

func (s *listingService) Reserve(ctx context.Context, listingID string, reserver model.Principal) (*model.Listing, error) {
	if listingID == "" {
		return nil, apperrors.InvalidInput("Listing ID cannot be empty")
	}
	if reserver.UserID == "" {
		return nil, apperrors.Unauthorized("Authenticated user is required")
	}

	now := s.now()
	var listing *model.Listing
	attempts := 0
	err := db.RetryOnce(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		listing, err = s.repo.Reserve(ctx, listingID, reserver.UserID, now)
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, listingserrors.ErrPreconditionFailed):
		listing, err = s.classifyReserveMiss(ctx, listingID, reserver.UserID, now, attempts > 1)
		if err != nil {
			return nil, err
		}
	default:
		return nil, s.mapRepoError(err, listingID, "Failed to reserve listing")
	}

	s.notifyOwner(listing, reserver)
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeListingReserved,
		Key:        listing.ID,
		ActorID:    reserver.UserID,
		OccurredAt: now,
		Payload:    listing,
	})

	s.cfg.Log.Info("Listing reserved",
		"id", listing.ID,
		"owner_id", listing.OwnerID,
		"reserved_by", reserver.UserID,
	)
	return listing, nil
}

// classifyReserveMiss explains why the conditional update matched nothing.
// After a retry, a reservation already held by the caller is the first
// attempt's write and counts as success.
func (s *listingService) classifyReserveMiss(ctx context.Context, id, userID string, now time.Time, retried bool) (*model.Listing, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to reserve listing")
	}

	switch {
	case retried && current.Status == model.StatusReserved && current.IsReservedBy(userID):
		return current, nil
	case current.Status != model.StatusAvailable:
		return nil, apperrors.Conflict("Listing is no longer available").
			WithDetails(map[string]any{"listing_id": id, "status": current.Status})
	case !current.AvailableUntil.After(now):
		return nil, apperrors.Conflict("Listing has expired").
			WithDetails(map[string]any{"listing_id": id, "available_until": current.AvailableUntil})
	case current.OwnerID == userID:
		return nil, apperrors.Validation("You cannot reserve your own listing",
			map[string]any{"listing_id": id})
	default:
		// The listing changed between the update and the read.
		return nil, apperrors.Conflict("Listing is no longer available").
			WithDetails(map[string]any{"listing_id": id, "status": current.Status})
	}
}

func (s *listingService) notifyOwner(listing *model.Listing, reserver model.Principal) {
	name := reserver.Name
	if name == "" {
		name = "Someone"
	}
	s.notifier.SendToUser(listing.OwnerID, protocol.EventNotification, model.Notification{
		Type:    model.NotificationReservation,
		Message: fmt.Sprintf("%s reserved your listing: %s", name, listing.Title),
		Data: map[string]any{
			"listing_id":    listing.ID,
			"title":         listing.Title,
			"reserved_by":   reserver.UserID,
			"reserver_name": reserver.Name,
		},
		Timestamp: s.now(),
	})
}

func (s *listingService) Complete(ctx context.Context, listingID, actorID string) (*model.Listing, error) {
	if listingID == "" {
		return nil, apperrors.InvalidInput("Listing ID cannot be empty")
	}
	if actorID == "" {
		return nil, apperrors.Unauthorized("Authenticated user is required")
	}

	now := s.now()
	var listing *model.Listing
	attempts := 0
	err := db.RetryOnce(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		listing, err = s.repo.Complete(ctx, listingID, actorID, now)
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, listingserrors.ErrPreconditionFailed):
		listing, err = s.classifyCompleteMiss(ctx, listingID, actorID, attempts > 1)
		if err != nil {
			return nil, err
		}
	default:
		return nil, s.mapRepoError(err, listingID, "Failed to complete listing")
	}

	s.notifyOtherParty(listing, actorID)
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeListingCompleted,
		Key:        listing.ID,
		ActorID:    actorID,
		OccurredAt: now,
		Payload:    listing,
	})

	s.cfg.Log.Info("Listing completed", "id", listing.ID, "completed_by", actorID)
	return listing, nil
}

func (s *listingService) classifyCompleteMiss(ctx context.Context, id, actorID string, retried bool) (*model.Listing, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to complete listing")
	}

	party := current.OwnerID == actorID || current.IsReservedBy(actorID)
	details := map[string]any{"listing_id": id, "status": current.Status}

	switch {
	case retried && current.Status == model.StatusCompleted && party:
		return current, nil
	case current.Status == model.StatusCompleted:
		return nil, apperrors.Conflict("Listing is already completed").WithDetails(details)
	case current.Status == model.StatusAvailable:
		return nil, apperrors.Conflict("Listing has not been reserved").WithDetails(details)
	case !party:
		return nil, apperrors.Conflict("Only the owner or the reserver can complete this listing").WithDetails(details)
	default:
		return nil, apperrors.Conflict("Listing cannot be completed").WithDetails(details)
	}
}

func (s *listingService) notifyOtherParty(listing *model.Listing, actorID string) {
	recipient := listing.OwnerID
	if actorID == listing.OwnerID {
		if listing.ReservedBy == nil {
			return
		}
		recipient = *listing.ReservedBy
	}
	s.notifier.SendToUser(recipient, protocol.EventNotification, model.Notification{
		Type:    model.NotificationCompleted,
		Message: fmt.Sprintf("Pickup completed: %s", listing.Title),
		Data: map[string]any{
			"listing_id":   listing.ID,
			"title":        listing.Title,
			"completed_by": actorID,
		},
		Timestamp: s.now(),
	})
}
