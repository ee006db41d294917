// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Ingest   IngestConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// IngestConfig holds ingestion engine and service settings.
type IngestConfig struct {
	// MaxFileSize is the maximum accepted upload in bytes (default: 32MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"33554432"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 4)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 15s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"15s"`

	// HeaderSearchRows is how many leading rows header discovery scans (default: 20)
	HeaderSearchRows int `env:"INGEST_HEADER_SEARCH_ROWS" default:"20"`

	// MinHeaderColumns is the non-empty cell count a header row needs (default: 2)
	MinHeaderColumns int `env:"INGEST_MIN_HEADER_COLUMNS" default:"2"`

	// FallbackPrefix names blank header cells, e.g. "Column C" (default: Column)
	FallbackPrefix string `env:"INGEST_FALLBACK_PREFIX" default:"Column"`

	// TypeThreshold is the share a category needs to type a column (default: 0.8)
	TypeThreshold float64 `env:"INGEST_TYPE_THRESHOLD" default:"0.8"`

	// GreedyBlankLines collapses runs of blank CSV lines (default: true)
	GreedyBlankLines bool `env:"INGEST_GREEDY_BLANK_LINES" default:"true"`

	// KeepEmptyRows keeps rows whose cells are all blank (default: false)
	KeepEmptyRows bool `env:"INGEST_KEEP_EMPTY_ROWS" default:"false"`

	// SchemaFile is an optional YAML file of extra typed schemas
	SchemaFile string `env:"INGEST_SCHEMA_FILE"`

	// RetainFor is how long an outcome stays queryable by ID (default: 15m)
	RetainFor time.Duration `env:"INGEST_RETAIN_FOR" default:"15m"`

	// MaxRetained caps the number of retained outcomes (default: 64)
	MaxRetained int `env:"INGEST_MAX_RETAINED" default:"64"`

	// JanitorInterval is how often expired outcomes are evicted (default: 1m)
	JanitorInterval time.Duration `env:"INGEST_JANITOR_INTERVAL" default:"1m"`

	// DefaultPageSize is the page size when a request names none (default: 50)
	DefaultPageSize int `env:"INGEST_DEFAULT_PAGE_SIZE" default:"50"`

	// MaxPageSize caps the page size a request may ask for (default: 1000)
	MaxPageSize int `env:"INGEST_MAX_PAGE_SIZE" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// IngestLimit is requests per minute for ingestion endpoints (default: 20)
	IngestLimit int `env:"RATE_LIMIT_INGEST" default:"20"`

	// Burst is how many requests may arrive at once (default: 10)
	Burst int `env:"RATE_LIMIT_BURST" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables API key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// DatadogEnabled turns on the Datadog backend (default: false)
	DatadogEnabled bool `env:"DD_METRICS_ENABLED" default:"false"`

	// APIKey is read by the Datadog client; checked here so startup fails early
	APIKey string `env:"DD_API_KEY"`

	// JobName becomes the job:<name> tag (default: tabular)
	JobName string `env:"METRICS_JOB_NAME" default:"tabular"`

	// Tags are extra comma-separated tags, e.g. "service:ingest,team:data"
	Tags []string `env:"METRICS_TAGS"`

	// FlushInterval is how often buffered metrics are submitted (default: 60s)
	FlushInterval time.Duration `env:"METRICS_FLUSH_INTERVAL" default:"60s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
