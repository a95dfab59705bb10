package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"

	"github.com/sourcing-hub/marketplace/internal/listing"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	UpstreamBaseURL          string        `envconfig:"UPSTREAM_BASE_URL" required:"true"`
	UpstreamTimeout          time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"15s"`
	UpstreamAuthBypassRoutes []string      `envconfig:"UPSTREAM_AUTH_BYPASS_ROUTES"`

	ListingPageSize   int    `envconfig:"LISTING_PAGE_SIZE" default:"12"`
	ListingFetchLimit int    `envconfig:"LISTING_FETCH_LIMIT" default:"1000"`
	ListingCollation  string `envconfig:"LISTING_COLLATION" default:"en"`
	// ListingAliasesFile overrides the embedded field alias table.
	ListingAliasesFile string `envconfig:"LISTING_ALIASES_FILE"`

	RefdataTTL         time.Duration `envconfig:"REFDATA_TTL" default:"10m"`
	RefdataRefreshCron string        `envconfig:"REFDATA_REFRESH_CRON" default:"*/15 * * * *"`
	RefdataDebounce    time.Duration `envconfig:"REFDATA_DEBOUNCE" default:"500ms"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// LoadConfig reads configuration from environment variables. Outside
// production an optional .env file is loaded first; variables already set in
// the environment win.
func LoadConfig() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream base url %q must be absolute", c.UpstreamBaseURL)
	}
	if c.ListingPageSize <= 0 {
		return errors.New("listing page size must be positive")
	}
	if c.ListingFetchLimit <= 0 {
		return errors.New("listing fetch limit must be positive")
	}
	if _, err := language.Parse(c.ListingCollation); err != nil {
		return fmt.Errorf("listing collation %q: %w", c.ListingCollation, err)
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

// Collation returns the language used to order text columns.
func (c *Config) Collation() language.Tag {
	tag, err := language.Parse(c.ListingCollation)
	if err != nil {
		return language.English
	}
	return tag
}

// Normalizer builds the record normalizer, reading ListingAliasesFile when
// set.
func (c *Config) Normalizer() (*listing.Normalizer, error) {
	if c.ListingAliasesFile == "" {
		return listing.DefaultNormalizer(), nil
	}
	data, err := os.ReadFile(c.ListingAliasesFile)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	n, err := listing.ParseSchemas(data)
	if err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", c.ListingAliasesFile, err)
	}
	return n, nil
}

// Sorter returns the listing sorter for the configured collation.
func (c *Config) Sorter() listing.Sorter {
	return listing.Sorter{Language: c.Collation()}
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
