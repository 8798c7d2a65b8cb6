// Package mongotest gives repository tests a fresh, migrated MongoDB
// database. Tests are skipped unless MONGO_TEST_URI is set.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	mongomigrations "seva/internal/migrations/mongo"
	"seva/pkg/client"
	"seva/pkg/config"
	"seva/pkg/logger"
)

const (
	EnvTestMongoURI   = "MONGO_TEST_URI"
	ConnectionTimeout = 10 * time.Second
	OperationTimeout  = 5 * time.Second
)

// Config connects to MONGO_TEST_URI and returns a config pointing at a
// uniquely named database. The database is dropped when the test ends.
func Config(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv(EnvTestMongoURI)
	if uri == "" {
		t.Skipf("%s not set; skipping MongoDB integration test", EnvTestMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	log := logger.Discard()
	cfg := &config.Config{
		MongoURI:          uri,
		MongoDatabaseName: "seva_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		MongoConnTimeout:  ConnectionTimeout,
		MongoReadTimeout:  OperationTimeout,
		MongoWriteTimeout: OperationTimeout,
		StorageDriver:     config.StorageMongo,
		Log:               log,
		Client:            &client.Client{Mongo: mongoClient},
	}

	if err := mongomigrations.RunMigration(ctx, mongoClient, cfg.MongoDatabaseName, log); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
		defer cancel()
		if err := mongoClient.Database(cfg.MongoDatabaseName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop test database %s: %v", cfg.MongoDatabaseName, err)
		}
		if err := mongoClient.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect from MongoDB: %v", err)
		}
	})

	return cfg
}

func Collection(cfg *config.Config, name string) *mongo.Collection {
	return cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(name)
}

func Insert(t *testing.T, cfg *config.Config, collectionName string, docs ...any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()

	if _, err := Collection(cfg, collectionName).InsertMany(ctx, docs); err != nil {
		t.Fatalf("failed to insert into %s: %v", collectionName, err)
	}
}

func CountDocuments(t *testing.T, cfg *config.Config, collectionName string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()

	if filter == nil {
		filter = bson.M{}
	}
	count, err := Collection(cfg, collectionName).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collectionName, err)
	}
	return count
}
