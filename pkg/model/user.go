package model

// User is owned by the account service; this core only reads it and keeps
// the last known location current.
type User struct {
	ID       string    `json:"id" bson:"_id"`
	Name     string    `json:"name" bson:"name"`
	Email    string    `json:"email,omitempty" bson:"email,omitempty"`
	Location *GeoPoint `json:"location,omitempty" bson:"location,omitempty"`
}

// Principal is the authenticated identity behind a connection or request.
type Principal struct {
	UserID string
	Name   string
}
