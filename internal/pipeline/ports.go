package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
)

//go:generate mockgen -source=ports.go -destination=../mocks/pipeline_mocks.go -package=mocks

// ResourceStore is the cache and system of record for aggregated resources.
type ResourceStore interface {
	// FreshResources returns non-archived records for postalCode last seen at
	// or after since, and the newest last_seen_at among them.
	FreshResources(ctx context.Context, postalCode string, since time.Time) ([]domain.ResourceRecord, time.Time, error)
	// UpsertResources inserts or replaces records keyed by (source, source_id).
	UpsertResources(ctx context.Context, records []domain.ResourceRecord) error
	Ping(ctx context.Context) error
}

// Publisher fans freshly aggregated records out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, postalCode string, records []domain.ResourceRecord) error
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the caller's request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
