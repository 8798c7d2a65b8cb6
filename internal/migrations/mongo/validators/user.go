package validators

import "go.mongodb.org/mongo-driver/bson"

// UserValidator only constrains the fields this service writes. Accounts are
// owned by the identity service, so _id may be a string or an ObjectId.
var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name"},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType": "string",
			},

			"location": geoPoint,
		},
	},
}
