// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Storage  StorageConfig
	Lock     LockConfig
	Tasks    TasksConfig
	Handlers HandlersConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining imports (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, or "memory" for the
	// in-process store. Supports DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// InMemory reports whether the in-process store was requested.
func (c DatabaseConfig) InMemory() bool {
	return strings.EqualFold(strings.TrimSpace(c.URL), "memory")
}

// UploadConfig holds import processing settings.
type UploadConfig struct {
	// MaxFileSize is the largest accepted multipart request in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxDocumentBytes caps how much of a document validation reads (default: 10MB)
	MaxDocumentBytes int64 `env:"UPLOAD_MAX_DOCUMENT_BYTES" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single import (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// StorageConfig selects where uploaded files are kept.
type StorageConfig struct {
	// Backend is "local" or "minio" (default: local)
	Backend   string `env:"STORAGE_BACKEND" default:"local"`
	LocalRoot string `env:"STORAGE_LOCAL_ROOT" default:"./data"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT" envAlt:"S3_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envAlt:"AWS_ACCESS_KEY_ID"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" default:"geoimport"`
	MinIORegion    string `env:"MINIO_REGION" default:"us-east-1"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" default:"false"`
}

// LockConfig selects the per-resource lock implementation.
type LockConfig struct {
	// Backend is "local" (in-process) or "redis" (default: local)
	Backend   string        `env:"LOCK_BACKEND" default:"local"`
	RedisAddr string        `env:"REDIS_ADDR" default:"localhost:6379"`
	Prefix    string        `env:"LOCK_PREFIX" default:"geoimport:lock:"`
	TTL       time.Duration `env:"LOCK_TTL" default:"30s"`
	MaxWait   time.Duration `env:"LOCK_MAX_WAIT" default:"10s"`
}

// TasksConfig selects where handler tasks are submitted.
type TasksConfig struct {
	// Backend is "inline" or "temporal" (default: inline)
	Backend           string `env:"TASK_BACKEND" default:"inline"`
	TemporalAddress   string `env:"TEMPORAL_ADDRESS" default:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE" default:"default"`
	TemporalTaskQueue string `env:"TEMPORAL_TASK_QUEUE" default:"geoimport"`
}

// HandlersConfig tunes handler registration.
type HandlersConfig struct {
	// PriorityFile is an optional YAML file overriding handler priorities
	PriorityFile string `env:"HANDLERS_PRIORITY_FILE"`

	// InlineStyleSubtypes lists resource subtypes whose data handler applies
	// styles itself (comma-separated)
	InlineStyleSubtypes []string `env:"HANDLERS_INLINE_STYLE_SUBTYPES"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector; empty disables export
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" default:"geoimport"`
	Environment string  `env:"APP_ENV" default:"development"`
	SampleRatio float64 `env:"OTEL_SAMPLER_RATIO" default:"1"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
