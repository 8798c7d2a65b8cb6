package repository

import (
	"context"
	"fmt"

	"seva/pkg/config"
	mongodb "seva/pkg/db/mongo"
	"seva/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Messages"
)

// ConversationSummary is one counterpart of a user's inbox before names are
// resolved.
type ConversationSummary struct {
	CounterpartID string
	LastMessage   *model.Message
	UnreadCount   int
}

type MessageRepository interface {
	// Create inserts msg under msg.ID, assigning one when empty. Inserting
	// an id that is already stored is a no-op, so a retried write never
	// yields a second copy.
	Create(ctx context.Context, msg *model.Message) error
	// FindConversation returns up to limit of the most recent messages
	// between the two users, oldest first. Equal timestamps fall back to
	// insertion order.
	FindConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*model.Message, error)
	// MarkRead flips every unread message from senderID to recipientID.
	MarkRead(ctx context.Context, recipientID, senderID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	// Conversations lists one summary per counterpart, newest activity first.
	Conversations(ctx context.Context, userID string) ([]ConversationSummary, error)
}

type mongoMessageRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoMessageRepository(cfg *config.Config) MessageRepository {
	return &mongoMessageRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = mongodb.NewID()
	}
	oid, err := primitive.ObjectIDFromHex(msg.ID)
	if err != nil {
		return fmt.Errorf("insert message: invalid id %q: %w", msg.ID, err)
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "sender_id", Value: msg.SenderID},
		{Key: "recipient_id", Value: msg.RecipientID},
		{Key: "content", Value: msg.Content},
		{Key: "read", Value: msg.Read},
		{Key: "created_at", Value: msg.CreatedAt},
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		// _id is the only unique key: an earlier attempt already stored it.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return mongodb.Wrap("insert message", err)
	}
	return nil
}

func between(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "recipient_id": b},
		bson.M{"sender_id": b, "recipient_id": a},
	}}
}

func (r *mongoMessageRepository) FindConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*model.Message, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	// Newest page first, reversed below, so a limit keeps the latest messages.
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, between(userID, otherUserID), opts)
	if err != nil {
		return nil, mongodb.Wrap("find conversation", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*model.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, mongodb.Wrap("decode conversation", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *mongoMessageRepository) MarkRead(ctx context.Context, recipientID, senderID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	filter := bson.M{"recipient_id": recipientID, "sender_id": senderID, "read": false}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, mongodb.Wrap("mark messages read", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoMessageRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "read": false})
	if err != nil {
		return 0, mongodb.Wrap("count unread messages", err)
	}
	return count, nil
}

func (r *mongoMessageRepository) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"recipient_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}},
				"$recipient_id",
				"$sender_id",
			}},
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipient_id", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongodb.Wrap("aggregate conversations", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		CounterpartID string         `bson:"_id"`
		LastMessage   *model.Message `bson:"last_message"`
		UnreadCount   int            `bson:"unread_count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mongodb.Wrap("decode conversations", err)
	}

	summaries := make([]ConversationSummary, len(rows))
	for i, row := range rows {
		summaries[i] = ConversationSummary{
			CounterpartID: row.CounterpartID,
			LastMessage:   row.LastMessage,
			UnreadCount:   row.UnreadCount,
		}
	}
	return summaries, nil
}
