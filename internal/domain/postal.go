package domain

import (
	"fmt"
	"math"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// zipCodeRe accepts a 5-digit US ZIP with an optional +4 suffix, e.g. "78028"
// or "78028-1234". Go's \d is ASCII-only, so full-width digits are rejected.
var zipCodeRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// RegisterValidation only fails on an empty or reserved tag name.
	if err := v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return zipCodeRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// SearchRequest is the only user-supplied input that reaches the adapters.
// Radius and freshness window are fixed by configuration.
type SearchRequest struct {
	PostalCode string `json:"postal_code" validate:"required,zipcode"`
}

// Validate returns an ErrInvalidInput-wrapped error when the postal code is
// not a 5-digit ZIP or ZIP+4.
func (r SearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: postal code %q must be a 5-digit ZIP or ZIP+4", ErrInvalidInput, r.PostalCode)
	}
	return nil
}

// ValidatePostalCode validates postalCode exactly as given; surrounding
// whitespace is rejected like any other stray character.
func ValidatePostalCode(postalCode string) (string, error) {
	req := SearchRequest{PostalCode: postalCode}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return req.PostalCode, nil
}

// BaseZIP returns the 5-digit part of a ZIP or ZIP+4. Geocoding and radius
// searches operate on the 5-digit area.
func BaseZIP(postalCode string) string {
	if len(postalCode) > 5 && postalCode[5] == '-' {
		return postalCode[:5]
	}
	return postalCode
}

// ValidCoordinates reports whether lat/lng form a usable WGS-84 position.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return validate.Struct(Coordinates{Lat: lat, Lng: lng}) == nil
}
