package mapbox

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by postal
// code. Only successful lookups are cached so failures can be retried.
// Concurrent misses for one postal code share a single upstream call.
type CachedGeocoder struct {
	inner   domain.Geocoder
	metrics *observability.Metrics
	flight  singleflight.Group

	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	postalCode string
	coords     domain.Coordinates
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &CachedGeocoder{
		inner:      inner,
		metrics:    metrics,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, postalCode string) (domain.Coordinates, error) {
	postalCode = domain.BaseZIP(postalCode)
	if coords, ok := c.get(postalCode); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return coords, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	// The entry is stored before the flight ends, so a caller arriving after
	// it either joins the flight or hits the cache. The shared call is not
	// tied to the first caller's cancellation; the inner client's timeout
	// bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(postalCode, func() (any, error) {
		coords, err := c.inner.Geocode(flightCtx, postalCode)
		if err != nil {
			return coords, err
		}
		c.put(postalCode, coords)
		return coords, nil
	})

	select {
	case res := <-ch:
		coords, _ := res.Val.(domain.Coordinates)
		return coords, res.Err
	case <-ctx.Done():
		return domain.Coordinates{}, ctx.Err()
	}
}

// Len reports the number of cached postal codes.
func (c *CachedGeocoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedGeocoder) get(postalCode string) (domain.Coordinates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[postalCode]
	if !ok {
		return domain.Coordinates{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).coords, true
}

func (c *CachedGeocoder) put(postalCode string, coords domain.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[postalCode]; ok {
		el.Value.(*cacheEntry).coords = coords
		c.order.MoveToFront(el)
		return
	}

	c.entries[postalCode] = c.order.PushFront(&cacheEntry{postalCode: postalCode, coords: coords})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).postalCode)
	}
}
