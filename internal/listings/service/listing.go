package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"seva/internal/events"
	listingserrors "seva/internal/listings/errors"
	"seva/internal/listings/repository"
	"seva/internal/listings/validator"
	usersrepo "seva/internal/users/repository"
	"seva/pkg/config"
	mongodb "seva/pkg/db/mongo"
	apperrors "seva/pkg/errors"
	"seva/pkg/geo"
	"seva/pkg/model"
	"seva/pkg/sanitizer"
)

const (
	DefaultNearbyLimit = 50
	MaxNearbyLimit     = 200
	MaxNearbyRadius    = 50_000.0
)

type ListingService interface {
	// CreateAndBroadcast persists a listing and then fans it out to nearby
	// connections. A repeated submission returns the stored listing without
	// a second fan-out.
	CreateAndBroadcast(ctx context.Context, ownerID string, input *model.ListingInput) (*model.Listing, error)
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]*model.Listing, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error)
	Reserve(ctx context.Context, listingID string, reserver model.Principal) (*model.Listing, error)
	Complete(ctx context.Context, listingID, actorID string) (*model.Listing, error)
}

// Notifier delivers frames to live connections. presence.Hub satisfies it.
type Notifier interface {
	BroadcastNear(lat, lng float64, event string, payload any, exceptUserIDs ...string) int
	SendToUser(userID, event string, payload any) int
}

type Option func(*listingService)

// WithClock overrides the time source. Tests use it to pin expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *listingService) { s.now = now }
}

type listingService struct {
	repo      repository.ListingRepository
	users     usersrepo.UserRepository
	notifier  Notifier
	events    events.Publisher
	validator *validator.ListingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewListingService(
	repo repository.ListingRepository,
	users usersrepo.UserRepository,
	notifier Notifier,
	publisher events.Publisher,
	validator *validator.ListingValidator,
	cfg *config.Config,
	opts ...Option,
) ListingService {
	if publisher == nil {
		publisher = events.Noop()
	}
	s := &listingService{
		repo:      repo,
		users:     users,
		notifier:  notifier,
		events:    publisher,
		validator: validator,
		cfg:       cfg,
		now:       mongodb.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *listingService) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Listing ID cannot be empty")
	}

	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve listing")
	}
	return listing, nil
}

func (s *listingService) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]*model.Listing, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return nil, apperrors.InvalidInput("lat must be within [-90, 90] and lng within [-180, 180]")
	}
	if radiusMeters <= 0 {
		radiusMeters = s.cfg.NotifyRadiusMeters
	}
	if radiusMeters > MaxNearbyRadius {
		radiusMeters = MaxNearbyRadius
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	if limit > MaxNearbyLimit {
		limit = MaxNearbyLimit
	}

	listings, err := s.repo.FindNearby(ctx, lat, lng, radiusMeters, s.now(), limit)
	if err != nil {
		s.cfg.Log.Error("Failed to search nearby listings", "lat", lat, "lng", lng, "error", err)
		return nil, apperrors.Persistence("Failed to search listings", err)
	}
	return listings, nil
}

func (s *listingService) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error) {
	if ownerID == "" {
		return nil, apperrors.Unauthorized("Authenticated owner is required")
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	if limit > MaxNearbyLimit {
		limit = MaxNearbyLimit
	}

	listings, err := s.repo.FindByOwner(ctx, ownerID, limit)
	if err != nil {
		s.cfg.Log.Error("Failed to list owner listings", "owner_id", ownerID, "error", err)
		return nil, apperrors.Persistence("Failed to retrieve listings", err)
	}
	return listings, nil
}

// mapRepoError turns repository sentinels into AppErrors. A malformed id
// names no listing, so it reads as not found.
func (s *listingService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, listingserrors.ErrNotFound), errors.Is(err, listingserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Listing", id)
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Persistence(message, err)
	}
}

func (s *listingService) sanitize(input *model.ListingInput) {
	input.Title = sanitizer.Line(input.Title)
	input.Description = sanitizer.Text(input.Description)
	input.Quantity = sanitizer.Line(input.Quantity)
	input.FoodType = sanitizer.Tag(input.FoodType)
	input.PhotoURL = strings.TrimSpace(input.PhotoURL)
	input.PickupInstructions = sanitizer.Text(input.PickupInstructions)
	input.Notes = sanitizer.Text(input.Notes)
	input.IdempotencyKey = sanitizer.Line(input.IdempotencyKey)

	if input.Location != nil {
		input.Location.Address = sanitizer.Line(input.Location.Address)
		if input.Location.Type == "" {
			input.Location.Type = model.GeoPointType
		}
	}
	if input.FoodSafety != nil {
		input.FoodSafety.StorageType = sanitizer.Tag(input.FoodSafety.StorageType)
		input.FoodSafety.Allergens = sanitizer.Tags(input.FoodSafety.Allergens)
		input.FoodSafety.DietaryInfo = sanitizer.Tags(input.FoodSafety.DietaryInfo)
	}
}

func (s *listingService) validate(input *model.ListingInput, now time.Time) error {
	if err := s.validator.Validate(input, now); err != nil {
		s.cfg.Log.Warn("Listing validation failed", "error", err)
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return apperrors.Validation("Listing validation failed", map[string]any{"errors": validationErrs})
		}
		return apperrors.Validation("Listing validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}
