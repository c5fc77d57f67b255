package domain

import "context"

// Geocoder resolves a postal code to its centroid.
type Geocoder interface {
	// Geocode returns the centroid for postalCode. Implementations return an
	// error wrapping ErrGeocode when the upstream reports no match.
	Geocode(ctx context.Context, postalCode string) (Coordinates, error)
}
