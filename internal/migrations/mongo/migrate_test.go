package mongo

import (
	"testing"

	listingsrepo "seva/internal/listings/repository"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections_EveryCollectionHasSchemaAndIndexes(t *testing.T) {
	for name, def := range Collections() {
		if len(def.Indexes) == 0 {
			t.Errorf("%s: expected at least one index", name)
		}
		schema, ok := def.Validator["$jsonSchema"].(bson.M)
		if !ok {
			t.Errorf("%s: validator has no $jsonSchema", name)
			continue
		}
		if _, ok := schema["required"].([]string); !ok {
			t.Errorf("%s: schema lists no required fields", name)
		}
	}
}

func TestListingsIndexes_IdempotencyKeyIsUniqueAndSparse(t *testing.T) {
	for _, idx := range ListingsIndexes {
		keys := idx.Keys.(bson.D)
		if keys[0].Key != "idempotency_key" {
			continue
		}
		if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
			t.Fatal("idempotency_key index must be unique")
		}
		if idx.Options.Sparse == nil || !*idx.Options.Sparse {
			t.Fatal("idempotency_key index must be sparse so keyless listings do not collide")
		}
		return
	}
	t.Fatal("no idempotency_key index")
}

func TestGeoIndexes(t *testing.T) {
	for _, set := range [][]bson.D{
		{ListingsIndexes[0].Keys.(bson.D)},
		{UsersIndexes[0].Keys.(bson.D)},
	} {
		if set[0][0].Key != "location" || set[0][0].Value != "2dsphere" {
			t.Errorf("expected a 2dsphere index on location, got %v", set[0])
		}
	}
}

func TestListingsIndexes_OwnerTitleUsesTitleCollation(t *testing.T) {
	for _, idx := range ListingsIndexes {
		keys := idx.Keys.(bson.D)
		if len(keys) < 2 || keys[1].Key != "title" {
			continue
		}
		if idx.Options == nil || idx.Options.Collation != listingsrepo.TitleCollation {
			t.Fatal("owner/title index must share the dedup lookup collation")
		}
		return
	}
	t.Fatal("no owner/title index")
}
