package domain

import "context"

//go:generate mockgen -destination=../mocks/domain_mocks.go -package=mocks . Adapter,Geocoder

// Adapter fetches candidate resources for a postal code from one upstream
// source. Implementations honour ctx cancellation and return whatever they
// could gather alongside a non-nil error on partial failure.
type Adapter interface {
	Source() Source
	Search(ctx context.Context, postalCode string) ([]RawResult, error)
}
