// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the shelves service.
// Environment variables are automatically parsed from the SHELVES_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// DBDriver is derived from BuildTarget when set to "auto"
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration
	SQLitePath string `envconfig:"SQLITE_PATH" default:"shelves.db"`

	// Aggregation
	AggregateWindow time.Duration `envconfig:"AGGREGATE_WINDOW" default:"15m"`
	PreviewCap      int           `envconfig:"PREVIEW_CAP" default:"4"`

	// Deduplication
	FuzzyThreshold float64 `envconfig:"FUZZY_THRESHOLD" default:"0.3"`

	// Feed composition
	DiscoveryStride int `envconfig:"DISCOVERY_STRIDE" default:"4"`

	// RecommendationURL points at the external recommendation service; empty
	// disables the discovery block entirely.
	RecommendationURL string `envconfig:"RECOMMENDATION_URL" default:""`

	// RSS ingestion adapters, comma-separated "provider|url|kind" triples.
	RSSFeeds string `envconfig:"RSS_FEEDS" default:""`

	// Cover cache
	CoverCacheDir   string `envconfig:"COVER_CACHE_DIR" default:"covers"`
	CoverQueueSize  int    `envconfig:"COVER_QUEUE_SIZE" default:"256"`
	CoverWorkersOff bool   `envconfig:"COVER_WORKERS_OFF" default:"false"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to
// "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}

	if c.AggregateWindow <= 0 {
		return fmt.Errorf("AGGREGATE_WINDOW must be positive, got %s", c.AggregateWindow)
	}
	if c.PreviewCap < 1 {
		return fmt.Errorf("PREVIEW_CAP must be at least 1, got %d", c.PreviewCap)
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD must be in [0,1], got %g", c.FuzzyThreshold)
	}
	if c.DiscoveryStride < 1 {
		return fmt.Errorf("DISCOVERY_STRIDE must be at least 1, got %d", c.DiscoveryStride)
	}
	if _, err := c.ParseRSSFeeds(); err != nil {
		return err
	}
	return nil
}

// RSSFeed is one configured ingestion source.
type RSSFeed struct {
	Provider string
	URL      string
	Kind     string
}

// ParseRSSFeeds parses the RSS_FEEDS triples.
func (c *Config) ParseRSSFeeds() ([]RSSFeed, error) {
	if strings.TrimSpace(c.RSSFeeds) == "" {
		return nil, nil
	}
	var out []RSSFeed
	for _, entry := range strings.Split(c.RSSFeeds, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "|")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("RSS_FEEDS entry %q: want provider|url|kind", entry)
		}
		out = append(out, RSSFeed{Provider: parts[0], URL: parts[1], Kind: parts[2]})
	}
	return out, nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with SHELVES_
// Example: SHELVES_HTTP_PORT, SHELVES_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SHELVES", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Dur("aggregate_window", cfg.AggregateWindow).
		Int("preview_cap", cfg.PreviewCap).
		Float64("fuzzy_threshold", cfg.FuzzyThreshold).
		Int("discovery_stride", cfg.DiscoveryStride).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		BuildTarget:     "local",
		DBDriver:        "sqlite",
		Environment:     EnvTesting,
		HTTPPort:        0,
		SQLitePath:      ":memory:",
		AggregateWindow: time.Hour,
		PreviewCap:      4,
		FuzzyThreshold:  0.3,
		DiscoveryStride: 4,
		CoverCacheDir:   "covers",
		CoverQueueSize:  16,
	}
}
