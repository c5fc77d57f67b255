package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/observability"
)

// Options tunes caching and fan-out.
type Options struct {
	Freshness      time.Duration
	AdapterTimeout time.Duration
}

// Response is the unified answer for one postal code.
type Response struct {
	Resources []domain.ResourceRecord `json:"resources"`
	Cached    bool                    `json:"cached"`
	CachedAt  *time.Time              `json:"cachedAt,omitempty"`
	Errors    []string                `json:"errors,omitempty"`
}

// Aggregator validates a postal code, serves it from the store when fresh,
// and otherwise fans out to every adapter, normalizes, persists and publishes.
type Aggregator struct {
	store     ResourceStore
	adapters  []domain.Adapter
	geocoder  domain.Geocoder
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
}

// New creates an Aggregator. geocoder and publisher may be nil; without a
// geocoder distances come only from adapters that supply them.
func New(store ResourceStore, adapters []domain.Adapter, geocoder domain.Geocoder, publisher Publisher,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Aggregator {
	return &Aggregator{
		store:     store,
		adapters:  adapters,
		geocoder:  geocoder,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness reports whether the backing store is reachable.
func (a *Aggregator) CheckReadiness(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}

// Aggregate returns resources for postalCode. Only invalid input is returned
// as an error; upstream, persistence and publish failures degrade into the
// response's Errors list or the log.
func (a *Aggregator) Aggregate(ctx context.Context, postalCode string) (Response, error) {
	zip, err := domain.ValidatePostalCode(postalCode)
	if err != nil {
		a.metrics.Aggregations.WithLabelValues("invalid").Inc()
		return Response{}, err
	}
	log := a.logger.With("postal_code", zip, "request_id", RequestID(ctx))

	if resp, ok := a.fromCache(ctx, log, zip); ok {
		a.metrics.Aggregations.WithLabelValues("cached").Inc()
		a.metrics.ResourcesServed.Observe(float64(len(resp.Resources)))
		return resp, nil
	}

	start := time.Now()
	raw, center, errs := a.fanOut(ctx, zip)
	records := domain.Normalize(raw, zip, center)

	log.Info("aggregated resources",
		"raw_count", len(raw),
		"resource_count", len(records),
		"failed_adapters", len(errs),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if len(records) > 0 {
		a.persist(ctx, log, records)
		a.publish(ctx, log, zip, records)
	}

	a.metrics.Aggregations.WithLabelValues("fresh").Inc()
	a.metrics.ResourcesServed.Observe(float64(len(records)))
	return Response{Resources: records, Errors: errs}, nil
}

// fromCache serves fresh stored records. Read failures count as a miss.
func (a *Aggregator) fromCache(ctx context.Context, log *slog.Logger, zip string) (Response, bool) {
	since := domain.Now().Add(-a.opts.Freshness)
	records, cachedAt, err := a.store.FreshResources(ctx, zip, since)
	if err != nil {
		log.Warn("cache read failed, treating as miss", "error", err)
		return Response{}, false
	}
	if len(records) == 0 {
		log.Debug("cache miss")
		return Response{}, false
	}

	log.Info("cache hit", "resource_count", len(records), "cached_at", cachedAt)
	at := cachedAt.UTC()
	return Response{Resources: records, Cached: true, CachedAt: &at}, true
}

// fanOut runs every adapter concurrently, each under its own timeout, plus
// the centroid lookup used for distances. Each goroutine owns one slot of the
// result slices so no locking is needed. Errors are reported in adapter
// registration order.
func (a *Aggregator) fanOut(ctx context.Context, zip string) ([]domain.RawResult, *domain.Coordinates, []string) {
	results := make([][]domain.RawResult, len(a.adapters))
	failures := make([]error, len(a.adapters))
	var center *domain.Coordinates

	var g errgroup.Group
	for i, ad := range a.adapters {
		g.Go(func() error {
			results[i], failures[i] = a.runAdapter(ctx, ad, zip)
			return nil
		})
	}
	if a.geocoder != nil {
		g.Go(func() error {
			gctx, cancel := context.WithTimeout(ctx, a.opts.AdapterTimeout)
			defer cancel()
			c, err := a.geocoder.Geocode(gctx, zip)
			if err != nil {
				a.logger.Warn("centroid lookup failed, distances limited to adapter values", "postal_code", zip, "error", err)
				return nil
			}
			center = &c
			return nil
		})
	}
	_ = g.Wait()

	var (
		raw  []domain.RawResult
		errs []string
	)
	for i := range a.adapters {
		raw = append(raw, results[i]...)
		if failures[i] != nil {
			errs = append(errs, failures[i].Error())
		}
	}
	return raw, center, errs
}

// runAdapter calls one adapter under AdapterTimeout, converting panics and
// errors into an AdapterError. Partial results are kept alongside an error.
func (a *Aggregator) runAdapter(ctx context.Context, ad domain.Adapter, zip string) (results []domain.RawResult, err error) {
	source := ad.Source()
	actx, cancel := context.WithTimeout(ctx, a.opts.AdapterTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		a.metrics.AdapterDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
			a.logger.Warn("adapter failed",
				"source", source,
				"postal_code", zip,
				"partial_count", len(results),
				"error", err,
			)
			err = domain.NewAdapterError(source, err)
		}
		a.metrics.AdapterRequests.WithLabelValues(string(source), outcome).Inc()
	}()

	results, err = ad.Search(actx, zip)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", a.opts.AdapterTimeout, err)
	}
	return results, err
}

// persist upserts records. The write is detached from the caller's
// cancellation so a disconnecting client does not abort it.
func (a *Aggregator) persist(ctx context.Context, log *slog.Logger, records []domain.ResourceRecord) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.AdapterTimeout)
	defer cancel()

	if err := a.store.UpsertResources(wctx, records); err != nil {
		reason := domain.PersistenceReason(err)
		a.metrics.PersistenceErrors.WithLabelValues(reason).Inc()
		log.Error("persist resources failed", "reason", reason, "resource_count", len(records), "error", err)
	}
}

func (a *Aggregator) publish(ctx context.Context, log *slog.Logger, zip string, records []domain.ResourceRecord) {
	if a.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.AdapterTimeout)
	defer cancel()

	if err := a.publisher.Publish(pctx, zip, records); err != nil {
		a.metrics.PublishErrors.Inc()
		log.Error("publish resources failed", "resource_count", len(records), "error", err)
	}
}
