package model

import (
	"time"
)

const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusCompleted = "completed"
)

// Listing is a donated food item. ReservedBy and ReservedAt are set exactly
// when Status is not available; status only ever moves forward.
type Listing struct {
	ID                 string      `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID            string      `json:"owner_id" bson:"owner_id"`
	Title              string      `json:"title" bson:"title"`
	Description        string      `json:"description" bson:"description"`
	Quantity           string      `json:"quantity" bson:"quantity"`
	FoodType           string      `json:"food_type,omitempty" bson:"food_type,omitempty"`
	PhotoURL           string      `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	Location           GeoPoint    `json:"location" bson:"location"`
	PickupInstructions string      `json:"pickup_instructions,omitempty" bson:"pickup_instructions,omitempty"`
	AvailableUntil     time.Time   `json:"available_until" bson:"available_until"`
	Notes              string      `json:"notes,omitempty" bson:"notes,omitempty"`
	FoodSafety         *FoodSafety `json:"food_safety,omitempty" bson:"food_safety,omitempty"`
	Status             string      `json:"status" bson:"status"`
	ReservedBy         *string     `json:"reserved_by" bson:"reserved_by"`
	ReservedAt         *time.Time  `json:"reserved_at" bson:"reserved_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	IdempotencyKey     string      `json:"-" bson:"idempotency_key,omitempty"`
	CreatedAt          time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" bson:"updated_at"`
}

type FoodSafety struct {
	StorageType string     `json:"storage_type,omitempty" bson:"storage_type,omitempty" validate:"omitempty,oneof=refrigerated frozen room_temperature"`
	Allergens   []string   `json:"allergens,omitempty" bson:"allergens,omitempty" validate:"omitempty,dive,oneof=dairy nuts gluten soy shellfish eggs fish none"`
	DietaryInfo []string   `json:"dietary_info,omitempty" bson:"dietary_info,omitempty" validate:"omitempty,dive,oneof=vegetarian vegan halal kosher gluten_free"`
	PreparedOn  *time.Time `json:"prepared_on,omitempty" bson:"prepared_on,omitempty"`
	BestByDate  *time.Time `json:"best_by_date,omitempty" bson:"best_by_date,omitempty"`
}

// ListingInput is what a client submits on either the live channel or the
// REST fallback. The owner always comes from the authenticated principal.
type ListingInput struct {
	Title              string      `json:"title" validate:"required,min=2,max=120"`
	Description        string      `json:"description" validate:"required,min=2,max=2000"`
	Quantity           string      `json:"quantity" validate:"required,max=120"`
	FoodType           string      `json:"food_type,omitempty" validate:"omitempty,oneof=prepared_meal groceries produce bakery canned leftovers"`
	PhotoURL           string      `json:"photo_url,omitempty" validate:"omitempty,url,max=2048"`
	Location           *GeoPoint   `json:"location" validate:"required"`
	PickupInstructions string      `json:"pickup_instructions,omitempty" validate:"omitempty,max=500"`
	AvailableUntil     *time.Time  `json:"available_until" validate:"required"`
	Notes              string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
	FoodSafety         *FoodSafety `json:"food_safety,omitempty" validate:"omitempty"`
	IdempotencyKey     string      `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// IsReservedBy reports whether userID holds the reservation.
func (l *Listing) IsReservedBy(userID string) bool {
	return l.ReservedBy != nil && *l.ReservedBy == userID
}

// OwnerSummary is the public view of a listing owner attached to fan-out events.
type OwnerSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
