package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"seva/pkg/logger"
	"seva/pkg/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func validInput() *model.ListingInput {
	until := now.Add(4 * time.Hour)
	loc := model.NewGeoPoint(40.7128, -74.0060)
	loc.Address = "12 Mulberry St"
	return &model.ListingInput{
		Title:          "Sourdough loaves",
		Description:    "Three loaves baked this morning",
		Quantity:       "3 loaves",
		FoodType:       "bakery",
		Location:       &loc,
		AvailableUntil: &until,
		FoodSafety: &model.FoodSafety{
			StorageType: "room_temperature",
			Allergens:   []string{"gluten"},
		},
	}
}

func fieldsOf(err error) []string {
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	return fields
}

func TestListingValidator_Validate(t *testing.T) {
	v := NewListingValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(*model.ListingInput)
		wantField string
	}{
		{name: "valid", mutate: func(*model.ListingInput) {}},
		{name: "missing title", mutate: func(in *model.ListingInput) { in.Title = "" }, wantField: "Title"},
		{name: "missing description", mutate: func(in *model.ListingInput) { in.Description = "" }, wantField: "Description"},
		{name: "missing quantity", mutate: func(in *model.ListingInput) { in.Quantity = "" }, wantField: "Quantity"},
		{name: "missing location", mutate: func(in *model.ListingInput) { in.Location = nil }, wantField: "Location"},
		{name: "missing available until", mutate: func(in *model.ListingInput) { in.AvailableUntil = nil }, wantField: "AvailableUntil"},
		{name: "unknown food type", mutate: func(in *model.ListingInput) { in.FoodType = "furniture" }, wantField: "FoodType"},
		{name: "latitude out of range", mutate: func(in *model.ListingInput) { in.Location.Coordinates = []float64{0, 95} }, wantField: "Coordinates"},
		{name: "wrong geometry type", mutate: func(in *model.ListingInput) { in.Location.Type = "Polygon" }, wantField: "Coordinates"},
		{name: "missing address", mutate: func(in *model.ListingInput) { in.Location.Address = " " }, wantField: "Address"},
		{name: "bad storage type", mutate: func(in *model.ListingInput) { in.FoodSafety.StorageType = "oven" }, wantField: "StorageType"},
		{name: "unknown allergen", mutate: func(in *model.ListingInput) { in.FoodSafety.Allergens = []string{"sesame"} }, wantField: "Allergens[0]"},
		{name: "expiry in the past", mutate: func(in *model.ListingInput) {
			past := now.Add(-time.Minute)
			in.AvailableUntil = &past
		}, wantField: "AvailableUntil"},
		{name: "photo not a url", mutate: func(in *model.ListingInput) { in.PhotoURL = "not a url" }, wantField: "PhotoURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			err := v.Validate(in, now)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			fields := fieldsOf(err)
			found := false
			for _, f := range fields {
				if f == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error on %s, got %v", tt.wantField, err)
			}
		})
	}
}

func TestListingValidator_NilInput(t *testing.T) {
	v := NewListingValidator(logger.Discard())
	if err := v.Validate(nil, now); err == nil {
		t.Fatal("expected error for nil input")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{{Field: "Title", Message: "Title is required"}, {Field: "Quantity", Message: "Quantity is required"}}
	msg := errs.Error()
	if !strings.Contains(msg, "2 error(s)") || !strings.Contains(msg, "Title is required") {
		t.Errorf("unexpected message %q", msg)
	}
}
