package repository

import (
	"context"
	"errors"
	listingserrors "seva/internal/listings/errors"
	"seva/pkg/config"
	mongodb "seva/pkg/db/mongo"
	"seva/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Listings"
)

// TitleCollation matches titles regardless of case. The owner/title index
// is built with it so the dedup lookup can use that index.
var TitleCollation = &options.Collation{Locale: "en", Strength: 2}

type ListingRepository interface {
	// Create inserts a new listing and sets its ID. A clash on the
	// idempotency key yields ErrDuplicateKey.
	Create(ctx context.Context, listing *model.Listing) error
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Listing, error)
	// FindRecentByOwnerTitle returns the newest listing the owner created
	// with this title at or after since. Titles compare case-insensitively.
	FindRecentByOwnerTitle(ctx context.Context, ownerID, title string, since time.Time) (*model.Listing, error)
	// FindByOwner returns the owner's listings in every status, newest first.
	FindByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error)
	// Reserve flips an available, unexpired listing not owned by reserverID
	// to reserved in one conditional update. No match is ErrPreconditionFailed.
	Reserve(ctx context.Context, id, reserverID string, now time.Time) (*model.Listing, error)
	// Complete flips a reserved listing to completed when actorID is its
	// owner or reserver. No match is ErrPreconditionFailed.
	Complete(ctx context.Context, id, actorID string, now time.Time) (*model.Listing, error)
	// FindNearby returns available, unexpired listings within radius,
	// nearest first.
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64, now time.Time, limit int) ([]*model.Listing, error)
}

type mongoListingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoListingRepository(cfg *config.Config) ListingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoListingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, listingserrors.ErrInvalidID
	}
	return oid, nil
}

func (r *mongoListingRepository) Create(ctx context.Context, listing *model.Listing) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, listing)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return listingserrors.ErrDuplicateKey
		}
		return mongodb.Wrap("insert listing", err)
	}

	listing.ID = mongodb.ObjectIDHex(result.InsertedID)
	return nil
}

func (r *mongoListingRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*model.Listing, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	var listing model.Listing
	if err := r.collection.FindOne(ctx, filter, opts...).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrNotFound
		}
		return nil, mongodb.Wrap("find listing", err)
	}
	return &listing, nil
}

func (r *mongoListingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoListingRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.Listing, error) {
	return r.findOne(ctx, bson.M{"idempotency_key": key})
}

func (r *mongoListingRepository) FindRecentByOwnerTitle(ctx context.Context, ownerID, title string, since time.Time) (*model.Listing, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"title":      title,
		"created_at": bson.M{"$gte": since},
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetCollation(TitleCollation)
	return r.findOne(ctx, filter, opts)
}

func (r *mongoListingRepository) FindByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Listing, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, mongodb.Wrap("find owner listings", err)
	}
	defer cursor.Close(ctx)

	listings := make([]*model.Listing, 0)
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, mongodb.Wrap("decode owner listings", err)
	}
	return listings, nil
}

func (r *mongoListingRepository) transition(ctx context.Context, filter bson.M, set bson.M) (*model.Listing, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing model.Listing
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrPreconditionFailed
		}
		return nil, mongodb.Wrap("update listing status", err)
	}
	return &listing, nil
}

func (r *mongoListingRepository) Reserve(ctx context.Context, id, reserverID string, now time.Time) (*model.Listing, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":             oid,
		"status":          model.StatusAvailable,
		"available_until": bson.M{"$gt": now},
		"owner_id":        bson.M{"$ne": reserverID},
	}
	set := bson.M{
		"status":      model.StatusReserved,
		"reserved_by": reserverID,
		"reserved_at": now,
		"updated_at":  now,
	}
	return r.transition(ctx, filter, set)
}

func (r *mongoListingRepository) Complete(ctx context.Context, id, actorID string, now time.Time) (*model.Listing, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":    oid,
		"status": model.StatusReserved,
		"$or": bson.A{
			bson.M{"owner_id": actorID},
			bson.M{"reserved_by": actorID},
		},
	}
	set := bson.M{
		"status":       model.StatusCompleted,
		"completed_at": now,
		"updated_at":   now,
	}
	return r.transition(ctx, filter, set)
}

func (r *mongoListingRepository) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, now time.Time, limit int) ([]*model.Listing, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":          model.StatusAvailable,
		"available_until": bson.M{"$gt": now},
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    bson.M{"type": model.GeoPointType, "coordinates": bson.A{lng, lat}},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, mongodb.Wrap("find nearby listings", err)
	}
	defer cursor.Close(ctx)

	listings := make([]*model.Listing, 0)
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, mongodb.Wrap("decode nearby listings", err)
	}
	return listings, nil
}
