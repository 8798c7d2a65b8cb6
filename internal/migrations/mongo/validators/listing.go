package validators

import "go.mongodb.org/mongo-driver/bson"

var geoPoint = bson.M{
	"bsonType": "object",
	"required": []string{"type", "coordinates"},
	"properties": bson.M{
		"type": bson.M{
			"bsonType": "string",
			"enum":     []string{"Point"},
		},
		"coordinates": bson.M{
			"bsonType": "array",
			"minItems": 2,
			"maxItems": 2,
			"items": bson.M{
				"bsonType": []string{"double", "int", "long"},
			},
		},
		"address": bson.M{
			"bsonType":  "string",
			"maxLength": 500,
		},
	},
}

var ListingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner_id",
			"title",
			"description",
			"quantity",
			"location",
			"available_until",
			"status",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"description": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 2000,
			},

			"quantity": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 120,
			},

			"location": geoPoint,

			"available_until": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"reserved",
					"completed",
				},
			},

			"reserved_by": bson.M{
				"bsonType": []string{"string", "null"},
			},

			"reserved_at": bson.M{
				"bsonType": []string{"date", "null"},
			},

			"completed_at": bson.M{
				"bsonType": "date",
			},

			"idempotency_key": bson.M{
				"bsonType":  "string",
				"maxLength": 512,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
