package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // NOTIFY_TIMEZONE must resolve on images without zoneinfo

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Registry RegistryConfig
	Notify   NotifyConfig
	App      AppConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins     []string      `envconfig:"SERVER_CORS_ORIGINS"` // empty allows any origin
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute, got %q", c.BaseURL)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// StorageConfig selects the backend and bounds every call made to it.
type StorageConfig struct {
	Driver      string        `envconfig:"STORAGE_DRIVER" required:"true"`
	Timeout     time.Duration `envconfig:"STORAGE_TIMEOUT" default:"3s"`
	ReadRetries int           `envconfig:"STORAGE_READ_RETRIES" default:"1"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite, DriverLibSQL, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver: %s (must be one of: postgres, sqlite, libsql, redis, memory)", c.Driver)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("storage timeout must be positive")
	}
	if c.ReadRetries < 0 {
		return fmt.Errorf("read retries cannot be negative")
	}
	return nil
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// URL returns the postgres:// connection URL. Both pgxpool and the
// migrator accept it.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// SQLiteConfig covers both the embedded file database and remote libSQL.
type SQLiteConfig struct {
	Path            string `envconfig:"SQLITE_PATH" default:"urls.db"`
	LibSQLURL       string `envconfig:"LIBSQL_URL"`
	LibSQLAuthToken string `envconfig:"LIBSQL_AUTH_TOKEN"`
}

// Validate checks the settings the given driver needs.
func (c *SQLiteConfig) Validate(driver string) error {
	switch driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	case DriverLibSQL:
		if c.LibSQLURL == "" {
			return fmt.Errorf("libsql URL cannot be empty")
		}
		if !strings.Contains(c.LibSQLURL, "://") {
			return fmt.Errorf("libsql URL must include a scheme, got %q", c.LibSQLURL)
		}
	}
	return nil
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR"`
	Password  string `envconfig:"REDIS_PASSWORD"`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"short_urls"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if c.DB < 0 {
		return fmt.Errorf("db index cannot be negative")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("key prefix cannot be empty")
	}
	return nil
}

// RegistryConfig tunes code generation.
type RegistryConfig struct {
	CodeLength  int `envconfig:"CODE_LENGTH" default:"6"`
	MaxAttempts int `envconfig:"CODE_MAX_ATTEMPTS" default:"20"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	if c.CodeLength < 3 || c.CodeLength > 10 {
		return fmt.Errorf("code length must be between 3 and 10, got %d", c.CodeLength)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	return nil
}

// NotifyConfig configures click notifications. With neither Telegram nor
// NATS configured, clicks are not reported anywhere.
type NotifyConfig struct {
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `envconfig:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL   string        `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
	Timezone         string        `envconfig:"NOTIFY_TIMEZONE" default:"Asia/Jakarta"`
	NATSURL          string        `envconfig:"NATS_URL"`
	NATSSubject      string        `envconfig:"NATS_SUBJECT" default:"links.clicked"`
	Timeout          time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
	MaxInFlight      int           `envconfig:"NOTIFY_MAX_INFLIGHT" default:"64"`
}

// TelegramEnabled reports whether both the bot token and chat id are set.
func (c *NotifyConfig) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func (c *NotifyConfig) NATSEnabled() bool {
	return c.NATSURL != ""
}

// Location resolves Timezone.
func (c *NotifyConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the notify configuration.
func (c *NotifyConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.TelegramEnabled() {
		if _, err := url.ParseRequestURI(c.TelegramAPIURL); err != nil {
			return fmt.Errorf("invalid telegram API URL %q: %w", c.TelegramAPIURL, err)
		}
	}
	if c.NATSEnabled() && c.NATSSubject == "" {
		return fmt.Errorf("NATS subject cannot be empty when NATS is enabled")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("notify timeout must be positive")
	}
	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max in-flight notifications must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment     string `envconfig:"APP_ENV" required:"true"`  // development, staging, production, test
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
	LogFile         string `envconfig:"LOG_FILE"`                 // optional rotated copy of the log
	LogMaxSizeMB    int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups   int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeInDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFile != "" {
		if c.LogMaxSizeMB <= 0 {
			return fmt.Errorf("log max size must be positive")
		}
		if c.LogMaxBackups < 0 || c.LogMaxAgeInDays < 0 {
			return fmt.Errorf("log retention settings cannot be negative")
		}
	}
	return nil
}

// MetricsConfig holds the Prometheus endpoint and service identity.
type MetricsConfig struct {
	Enabled        bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Path           string `envconfig:"METRICS_PATH" default:"/metrics"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"linkregistry"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if c.Enabled {
		if !strings.HasPrefix(c.Path, "/") || c.Path == "/" {
			return fmt.Errorf("metrics path must start with / and name a route, got %q", c.Path)
		}
		if c.Path == "/api" || strings.HasPrefix(c.Path, "/api/") {
			return fmt.Errorf("metrics path %q collides with the API routes", c.Path)
		}
	}
	return nil
}

// Load loads configuration from environment variables only.
// (Do .env loading in internal/app for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name     string
		target   any
		validate func() error
	}{
		{"Server", &cfg.Server, cfg.Server.Validate},
		{"Storage", &cfg.Storage, cfg.Storage.Validate},
		{"Registry", &cfg.Registry, cfg.Registry.Validate},
		{"Notify", &cfg.Notify, cfg.Notify.Validate},
		{"App", &cfg.App, cfg.App.Validate},
		{"Metrics", &cfg.Metrics, cfg.Metrics.Validate},
		{"Database", &cfg.Database, nil},
		{"SQLite", &cfg.SQLite, nil},
		{"Redis", &cfg.Redis, nil},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if s.validate == nil {
			continue
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	if err := cfg.validateBackend(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateBackend checks only the section the selected driver reads.
func (c *Config) validateBackend() error {
	var err error
	switch c.Storage.Driver {
	case DriverPostgres:
		if err = c.Database.Validate(); err != nil {
			return fmt.Errorf("invalid Database config: %w", err)
		}
	case DriverSQLite, DriverLibSQL:
		if err = c.SQLite.Validate(c.Storage.Driver); err != nil {
			return fmt.Errorf("invalid SQLite config: %w", err)
		}
	case DriverRedis:
		if err = c.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid Redis config: %w", err)
		}
	}
	return nil
}
