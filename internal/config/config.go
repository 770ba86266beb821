package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	APIAddr         string
	OpsAddr         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream lookups.
	NominatimURL       string
	NominatimUserAgent string
	OpenMeteoURL       string
	EJScreenURL        string
	UpstreamTimeout    time.Duration
	LiveLookupsEnabled bool
	// GeocodeCacheSize enables an in-process geocode cache when positive.
	GeocodeCacheSize int

	// Normalization.
	Schema            domain.Schema
	FallbackTablePath string
	CeilingsPath      string

	// Batch pipeline (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
	BatchConcurrency   int

	RelayTimeout       time.Duration
	RateLimitPerMinute int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	relayTimeout, err := parseDuration("RELAY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("BATCH_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveInt("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseNonNegativeInt("GEOCODE_CACHE_SIZE", 0)
	if err != nil {
		return nil, err
	}

	schema, err := domain.ParseSchema(sharedcfg.EnvOrDefault("INDICATOR_SCHEMA", string(domain.SchemaAirQuality)))
	if err != nil {
		return nil, fmt.Errorf("invalid INDICATOR_SCHEMA: %w", err)
	}

	cfg := &Config{
		APIAddr:         sharedcfg.EnvOrDefault("API_ADDR", ":8080"),
		OpsAddr:         sharedcfg.EnvOrDefault("OPS_ADDR", ":9090"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "ej-indicator-service/1.0"),
		OpenMeteoURL:       sharedcfg.EnvOrDefault("OPENMETEO_URL", "https://air-quality-api.open-meteo.com"),
		EJScreenURL:        sharedcfg.EnvOrDefault("EJSCREEN_URL", "https://ejscreen.epa.gov/mapper"),
		UpstreamTimeout:    upstreamTimeout,
		LiveLookupsEnabled: os.Getenv("LIVE_LOOKUPS_ENABLED") != "false",
		GeocodeCacheSize:   cacheSize,

		Schema:            schema,
		FallbackTablePath: os.Getenv("FALLBACK_TABLE_PATH"),
		CeilingsPath:      os.Getenv("CEILINGS_PATH"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "ej-location-queries"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "ej-analysis-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "ej-indicator-service"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		BatchConcurrency:   concurrency,

		RelayTimeout:       relayTimeout,
		RateLimitPerMinute: rateLimit,
	}

	if cfg.NominatimUserAgent == "" {
		return nil, errors.New("NOMINATIM_USER_AGENT is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
