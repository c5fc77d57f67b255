// Package app wires configuration into a ready Aggregator. Both the HTTP
// service and the lookup CLI build through here so they share one topology.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/directory"
	kafkaadapter "github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/llm"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/mapbox"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/memory"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/places"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/adapter/postgres"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/config"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/observability"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/pipeline"
)

// App is the assembled aggregation service.
type App struct {
	Aggregator *pipeline.Aggregator

	closers []func() error
	logger  *slog.Logger
}

// Build connects the store, constructs every adapter and the optional
// publisher, and returns the wired Aggregator. Adapters with missing
// credentials are still registered so each request reports them.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{logger: logger}

	store, err := a.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Deadlines come from the per-adapter context; the client only bounds
	// connection reuse.
	httpClient := &http.Client{Transport: http.DefaultTransport}

	var geocoder domain.Geocoder = mapbox.NewCachedGeocoder(
		mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger),
		cfg.MapboxCacheSize,
		metrics,
	)
	if cfg.MapboxToken == "" {
		logger.Warn("MAPBOX_TOKEN not set; distances and places search are unavailable")
	}

	adapters := []domain.Adapter{
		directory.New(directory.Config{
			APIKey:        cfg.DirectoryAPIKey,
			BaseURL:       cfg.DirectoryBaseURL,
			TaxonomyCodes: cfg.DirectoryTaxonomyCodes,
			ResultLimit:   cfg.DirectoryResultLimit,
			RadiusMiles:   cfg.SearchRadiusMiles,
		}, httpClient, logger),
		places.New(places.Config{
			APIKey:      cfg.PlacesAPIKey,
			RadiusMiles: cfg.SearchRadiusMiles,
			RateLimit:   cfg.PlacesRateLimit,
		}, geocoder, httpClient, logger),
		llm.NewProseSearcher(llm.NewChatClient(llm.PerplexityBaseURL, cfg.PerplexityAPIKey, cfg.PerplexityModel, httpClient), logger),
		llm.NewJSONSearcher(llm.NewChatClient(llm.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, httpClient), logger),
	}

	var publisher pipeline.Publisher
	if cfg.PublishEnabled() {
		p := kafkaadapter.NewPublisher(cfg, logger)
		a.closers = append(a.closers, p.Close)
		publisher = p
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	a.Aggregator = pipeline.New(store, adapters, geocoder, publisher, logger, metrics, pipeline.Options{
		Freshness:      cfg.CacheFreshness,
		AdapterTimeout: cfg.AdapterTimeout,
	})
	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config) (pipeline.ResourceStore, error) {
	if cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL not set; using in-memory store, cache is lost on restart")
		return memory.New(), nil
	}

	store, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, a.logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	return store, nil
}

// Close releases the publisher and store in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}
