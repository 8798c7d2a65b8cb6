package repository

import (
	"context"
	"errors"
	userserrors "seva/internal/users/errors"
	"seva/pkg/config"
	mongodb "seva/pkg/db/mongo"
	"seva/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Users"
)

// UserRepository reads accounts owned by the account service. The only write
// is the last known location, which feeds nearby-user notifications.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	// FindNearby returns ids of users whose last location is within radius,
	// nearest first, never including excludeID.
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64, excludeID string, limit int) ([]string, error)
	UpdateLocation(ctx context.Context, id string, location model.GeoPoint) error
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	return &mongoUserRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

// idFilter matches both ObjectID and plain string ids, since accounts
// created by other services may use either.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	var user model.User
	opts := options.FindOne().SetProjection(bson.M{"password": 0})
	if err := r.collection.FindOne(ctx, idFilter(id), opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrNotFound
		}
		return nil, mongodb.Wrap("find user", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	users := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	in := make(bson.A, 0, len(ids)*2)
	for _, id := range ids {
		in = append(in, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			in = append(in, oid)
		}
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": in}}, opts)
	if err != nil {
		return nil, mongodb.Wrap("find users", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, mongodb.Wrap("decode user", err)
		}
		users[user.ID] = &user
	}
	return users, mongodb.Wrap("iterate users", cursor.Err())
}

func (r *mongoUserRepository) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, excludeID string, limit int) ([]string, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	exclude := bson.A{excludeID}
	if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
		exclude = append(exclude, oid)
	}

	filter := bson.M{
		"_id": bson.M{"$nin": exclude},
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    bson.M{"type": model.GeoPointType, "coordinates": bson.A{lng, lat}},
				"$maxDistance": radiusMeters,
			},
		},
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongodb.Wrap("find nearby users", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, mongodb.Wrap("decode nearby user", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, mongodb.Wrap("iterate nearby users", cursor.Err())
}

func (r *mongoUserRepository) UpdateLocation(ctx context.Context, id string, location model.GeoPoint) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{
		"location":   location,
		"updated_at": mongodb.Now(),
	}})
	if err != nil {
		return mongodb.Wrap("update user location", err)
	}
	if result.MatchedCount == 0 {
		return userserrors.ErrNotFound
	}
	return nil
}
