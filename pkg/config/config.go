package config

import (
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Server configuration"`
	Database DatabaseConfig `yaml:"database" json:"database" jsonschema:"description=Key-value store database configuration"`
	CORS     CORSConfig     `yaml:"cors" json:"cors" jsonschema:"description=Cross-origin settings shared by all endpoints"`
	Flags    FlagsConfig    `yaml:"flags" json:"flags" jsonschema:"description=Feature flag service configuration"`
	Contact  ContactConfig  `yaml:"contact" json:"contact" jsonschema:"description=Contact form service configuration"`
}

// ServerConfig holds http listener settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:folio.db?cache=shared&mode=rwc,description=Database connection string"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
}

// CORSConfig holds the origin allow-list, the first origin is the fallback for unknown callers
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" jsonschema:"description=Allowed origins, first one is used for non-matching requests"`
}

// RateLimitConfig defines per-client request limit
type RateLimitConfig struct {
	Max    int           `yaml:"max" json:"max" jsonschema:"minimum=1,description=Maximum requests per window"`
	Window time.Duration `yaml:"window" json:"window" jsonschema:"description=Window length"`
}

// FlagsConfig holds feature flag service settings
type FlagsConfig struct {
	AdminAPIKey          string          `yaml:"admin_api_key" json:"admin_api_key" jsonschema:"description=API key for PUT /api/flags, updates are refused when empty"`
	CacheTTL             time.Duration   `yaml:"cache_ttl" json:"cache_ttl" jsonschema:"default=60s,description=Cache lifetime of GET responses"`
	StaleWhileRevalidate time.Duration   `yaml:"stale_while_revalidate" json:"stale_while_revalidate" jsonschema:"default=30s,description=stale-while-revalidate value for clients"`
	RateLimit            RateLimitConfig `yaml:"rate_limit" json:"rate_limit" jsonschema:"description=Per-IP limit, defaults to 100 per 60s"`
}

// ContactConfig holds contact form service settings
type ContactConfig struct {
	RecipientEmail  string          `yaml:"recipient_email" json:"recipient_email" jsonschema:"required,description=Where submissions are delivered"`
	FromAddress     string          `yaml:"from_address" json:"from_address" jsonschema:"description=Verified sender address"`
	PostmarkToken   string          `yaml:"postmark_token" json:"postmark_token" jsonschema:"required,description=Postmark server token"`
	PostmarkURL     string          `yaml:"postmark_url" json:"postmark_url" jsonschema:"description=Postmark API endpoint override"`
	TurnstileSecret string          `yaml:"turnstile_secret" json:"turnstile_secret" jsonschema:"required,description=Cloudflare Turnstile secret key"`
	TurnstileURL    string          `yaml:"turnstile_url" json:"turnstile_url" jsonschema:"description=Turnstile siteverify endpoint override"`
	UpstreamTimeout time.Duration   `yaml:"upstream_timeout" json:"upstream_timeout" jsonschema:"default=10s,description=Timeout for CAPTCHA and email provider calls"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" json:"rate_limit" jsonschema:"description=Per-IP limit of successful sends, defaults to 5 per hour"`
	// development only, contact submissions are not limited at all
	DisableRateLimit bool `yaml:"disable_rate_limit" json:"disable_rate_limit" jsonschema:"default=false,description=Turn off contact rate limiting (development only)"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	// set defaults for server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:folio.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// cors
	origins := make([]string, 0, len(c.CORS.AllowedOrigins))
	for _, o := range c.CORS.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"https://tylerearls.com", "http://localhost:3000", "http://localhost:4173"}
	}
	c.CORS.AllowedOrigins = origins

	// flags
	if c.Flags.CacheTTL == 0 {
		c.Flags.CacheTTL = 60 * time.Second
	}
	if c.Flags.StaleWhileRevalidate == 0 {
		c.Flags.StaleWhileRevalidate = 30 * time.Second
	}
	if c.Flags.RateLimit.Max == 0 {
		c.Flags.RateLimit.Max = 100
	}
	if c.Flags.RateLimit.Window == 0 {
		c.Flags.RateLimit.Window = 60 * time.Second
	}

	// contact
	if c.Contact.FromAddress == "" {
		c.Contact.FromAddress = "Portfolio Contact Form <contact@tylerearls.com>"
	}
	if c.Contact.UpstreamTimeout == 0 {
		c.Contact.UpstreamTimeout = 10 * time.Second
	}
	if c.Contact.RateLimit.Max == 0 {
		c.Contact.RateLimit.Max = 5
	}
	if c.Contact.RateLimit.Window == 0 {
		c.Contact.RateLimit.Window = time.Hour
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	for _, o := range cfg.CORS.AllowedOrigins {
		if o == "*" {
			return fmt.Errorf("cors.allowed_origins must list explicit origins, wildcard is not allowed")
		}
	}

	if cfg.Flags.RateLimit.Max < 1 || cfg.Contact.RateLimit.Max < 1 {
		return fmt.Errorf("rate_limit.max must be at least 1")
	}
	if cfg.Flags.RateLimit.Window < time.Second || cfg.Contact.RateLimit.Window < time.Second {
		return fmt.Errorf("rate_limit.window must be at least 1 second")
	}

	if cfg.Contact.RecipientEmail == "" {
		return fmt.Errorf("contact.recipient_email is required")
	}
	if _, err := mail.ParseAddress(cfg.Contact.RecipientEmail); err != nil {
		return fmt.Errorf("contact.recipient_email is invalid: %w", err)
	}
	if cfg.Contact.PostmarkToken == "" {
		return fmt.Errorf("contact.postmark_token is required")
	}
	if cfg.Contact.TurnstileSecret == "" {
		return fmt.Errorf("contact.turnstile_secret is required")
	}
	if cfg.Contact.UpstreamTimeout < 100*time.Millisecond {
		return fmt.Errorf("contact.upstream_timeout must be at least 100ms")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// Secrets returns configured secret values, used to mask them in logs
func (c *Config) Secrets() []string {
	var res []string
	for _, s := range []string{c.Flags.AdminAPIKey, c.Contact.PostmarkToken, c.Contact.TurnstileSecret} {
		if s != "" {
			res = append(res, s)
		}
	}
	return res
}

// GetAllowedOrigins returns CORS allow-list, first origin is the fallback
func (c *Config) GetAllowedOrigins() []string {
	return c.CORS.AllowedOrigins
}

// GetFlagsConfig returns cache lifetime, stale-while-revalidate and admin key of the flags endpoint
func (c *Config) GetFlagsConfig() (cacheTTL, staleWhileRevalidate time.Duration, adminKey string) {
	return c.Flags.CacheTTL, c.Flags.StaleWhileRevalidate, c.Flags.AdminAPIKey
}
