package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Aggregation behaviour.
	CacheFreshness    time.Duration
	AdapterTimeout    time.Duration
	SearchRadiusMiles float64

	// Store. An empty DatabaseURL selects the in-memory store.
	DatabaseURL      string
	DatabaseMaxConns int32

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Directory search adapter.
	DirectoryAPIKey        string
	DirectoryBaseURL       string
	DirectoryResultLimit   int
	DirectoryTaxonomyCodes []string

	// Places adapter.
	PlacesAPIKey    string
	PlacesRateLimit float64

	// LLM search adapters.
	PerplexityAPIKey string
	PerplexityModel  string
	OpenAIAPIKey     string
	OpenAIModel      string

	// Optional publisher. No brokers disables publishing.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
// Missing upstream credentials are not an error; the affected adapter reports
// them per request instead.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cacheFreshness, err := parseDuration("CACHE_FRESHNESS", "24h")
	if err != nil {
		return nil, err
	}
	adapterTimeout, err := parseDuration("ADAPTER_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	radius, err := parsePositiveFloat("SEARCH_RADIUS_MILES", "30")
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveFloat("PLACES_RATE_LIMIT", "5")
	if err != nil {
		return nil, err
	}
	maxConns, err := parsePositiveInt("DATABASE_MAX_CONNS", "10")
	if err != nil {
		return nil, err
	}
	resultLimit, err := parsePositiveInt("DIRECTORY_RESULT_LIMIT", "50")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("MAPBOX_CACHE_SIZE", "1000")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CacheFreshness:    cacheFreshness,
		AdapterTimeout:    adapterTimeout,
		SearchRadiusMiles: radius,

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: int32(maxConns),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: cacheSize,

		DirectoryAPIKey:        os.Getenv("DIRECTORY_API_KEY"),
		DirectoryBaseURL:       strings.TrimRight(sharedcfg.EnvOrDefault("DIRECTORY_BASE_URL", "https://api.211.org/resources/v2"), "/"),
		DirectoryResultLimit:   resultLimit,
		DirectoryTaxonomyCodes: splitList(sharedcfg.EnvOrDefault("DIRECTORY_TAXONOMY_CODES", "BH-1800,BD-1800,BH-0500,LH-2700")),

		PlacesAPIKey:    os.Getenv("GOOGLE_PLACES_API_KEY"),
		PlacesRateLimit: rateLimit,

		PerplexityAPIKey: os.Getenv("PERPLEXITY_API_KEY"),
		PerplexityModel:  sharedcfg.EnvOrDefault("PERPLEXITY_MODEL", "sonar"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		KafkaBrokers: parseOptionalBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "disaster-resources"),
	}

	if len(cfg.DirectoryTaxonomyCodes) == 0 {
		return nil, errors.New("DIRECTORY_TAXONOMY_CODES must list at least one code")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether resources should be published to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", name)
	}
	return d, nil
}

func parsePositiveInt(name, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(name, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parsePositiveFloat(name, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(name, def), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", name)
	}
	return f, nil
}

func parseOptionalBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
