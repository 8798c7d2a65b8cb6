package validator

import (
	"errors"
	"fmt"
	"seva/pkg/geo"
	"seva/pkg/logger"
	"seva/pkg/model"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ListingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewListingValidator(log *logger.Logger) *ListingValidator {
	v := validator.New()

	v.RegisterStructValidation(validateLocation, model.GeoPoint{})

	return &ListingValidator{
		validate: v,
		logger:   log,
	}
}

// validateLocation runs for every GeoPoint, including the pointer on
// ListingInput once it is non-nil.
func validateLocation(sl validator.StructLevel) {
	point := sl.Current().Interface().(model.GeoPoint)
	if !isValidPoint(point) {
		sl.ReportError(point.Coordinates, "Coordinates", "coordinates", "geo_point", "")
	}
	if strings.TrimSpace(point.Address) == "" {
		sl.ReportError(point.Address, "Address", "address", "required", "")
	}
}

func isValidPoint(p model.GeoPoint) bool {
	return p.Type == model.GeoPointType && len(p.Coordinates) == 2 && geo.ValidCoordinates(p.Lat(), p.Lng())
}

// Validate checks an input against the struct tags, then the rules that
// depend on the current time.
func (v *ListingValidator) Validate(input *model.ListingInput, now time.Time) error {
	if input == nil {
		return ValidationErrors{{Field: "listing", Message: "listing payload is required"}}
	}

	if err := v.validate.Struct(input); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !input.AvailableUntil.After(now) {
		return ValidationErrors{
			ValidationError{
				Field:   "AvailableUntil",
				Message: "available_until must be in the future",
			},
		}
	}

	return nil
}

func (v *ListingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", err.Field())
		case "len":
			message = fmt.Sprintf("%s must have exactly %s entries", err.Field(), err.Param())
		case "geo_point":
			message = fmt.Sprintf("%s must be a GeoJSON Point with [lng, lat] in range", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
