// Package config loads and validates the BotVault configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the BV_ prefix (e.g., BV_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary
// to run with a config.yaml in local development and with pure environment
// variables in containerized deployments.
//
// The two secrets, BOTVAULT_MASTER_KEY (envelope encryption master secret)
// and BOTVAULT_JWT_SECRET (token signing secret), have no BV_ prefix because
// they may be injected by infrastructure tooling (Kubernetes secrets, Vault
// agent) that does not know the application-specific prefix and treats them as
// generic secret names.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`

	Connections ConnectionsConfig `mapstructure:"connections"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// DSN builds the lib/pq connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

// AuthConfig holds signing and encryption secrets. Both fields are populated
// from unprefixed environment variables, never from the YAML file, so secrets
// cannot leak into checked-in configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"-"`
	MasterKey string `mapstructure:"-"`
}

// RateLimitConfig selects the bot-API rate limiter backend and budget.
type RateLimitConfig struct {
	// Backend is "memory" (default, single process) or "redis".
	Backend           string        `mapstructure:"backend"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Window            time.Duration `mapstructure:"window"`
	Redis             RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the connection settings for the Redis limiter backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// TelemetryConfig controls the Prometheus side-channel listener.
type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	MetricsPort    int  `mapstructure:"metrics_port"`
}

// AuditConfig controls the audit query surface and the optional mirror that
// copies audit entries to an external destination.
type AuditConfig struct {
	PageSize int               `mapstructure:"page_size"`
	Mirror   AuditMirrorConfig `mapstructure:"mirror"`
}

// AuditMirrorConfig configures best-effort audit mirroring. The database
// remains the authoritative trail; the mirror exists so a SIEM or log
// aggregator can consume entries without database access.
type AuditMirrorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Type    string        `mapstructure:"type"` // "file" or "webhook"
	Path    string        `mapstructure:"path"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ConnectionsConfig holds the OAuth clients used to refresh stored provider
// connections, keyed by provider name ("github", "google"). A connection for
// an unlisted provider can still be stored and read; only refresh requires an
// entry here. Provider names are dynamic, so this section comes from the YAML
// file rather than environment variables.
type ConnectionsConfig struct {
	Providers map[string]OAuthProviderConfig `mapstructure:"providers"`
}

// OAuthProviderConfig is the OAuth2 client configuration for one provider.
type OAuthProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// Load reads configuration from defaults, an optional YAML file, and BV_
// environment variables, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/botvault")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment variables suffice.
	}

	v.SetEnvPrefix("BV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not cooperate with Unmarshal on nested structs, so
	// every key is bound explicitly.
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Auth.JWTSecret = os.Getenv("BOTVAULT_JWT_SECRET")
	cfg.Auth.MasterKey = os.Getenv("BOTVAULT_MASTER_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Live-reload the log level on config file edits. Only the logging section
	// is re-read: secrets and pool sizes require a restart.
	if v.ConfigFileUsed() != "" {
		watchLoggingChanges(v)
	}

	return &cfg, nil
}

func watchLoggingChanges(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			slog.Warn("ignoring config change, unmarshal failed", "file", e.Name, "error", err)
			return
		}
		slog.Info("config file changed, re-applying logging settings",
			"file", e.Name, "level", next.Logging.Level, "format", next.Logging.Format)
		onLoggingChange(next.Logging)
	})
	v.WatchConfig()
}

// onLoggingChange is installed by main so the config package does not import
// telemetry.
var onLoggingChange = func(LoggingConfig) {}

// OnLoggingChange registers the callback invoked when the logging section of
// the config file changes at runtime.
func OnLoggingChange(fn func(LoggingConfig)) {
	if fn != nil {
		onLoggingChange = fn
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("BOTVAULT_JWT_SECRET environment variable is required; generate one with: openssl rand -hex 32")
	}
	if len(c.Auth.JWTSecret) < 32 {
		slog.Warn("BOTVAULT_JWT_SECRET is shorter than the recommended 32 characters")
	}
	if c.Auth.MasterKey == "" {
		return errors.New("BOTVAULT_MASTER_KEY environment variable is required; generate one with: go run scripts/generate-key.go")
	}
	if len(c.Auth.MasterKey) < 16 {
		return errors.New("BOTVAULT_MASTER_KEY must be at least 16 bytes")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limit.backend %q must be \"memory\" or \"redis\"", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && c.RateLimit.Redis.Addr == "" {
		return errors.New("rate_limit.redis.addr is required when rate_limit.backend is \"redis\"")
	}
	for name, p := range c.Connections.Providers {
		if p.ClientID == "" {
			return fmt.Errorf("connections.providers.%s.client_id is required", name)
		}
		if p.TokenURL == "" {
			return fmt.Errorf("connections.providers.%s.token_url is required", name)
		}
	}
	if c.Audit.PageSize <= 0 {
		return fmt.Errorf("audit.page_size %d must be positive", c.Audit.PageSize)
	}
	if c.Audit.Mirror.Enabled {
		switch c.Audit.Mirror.Type {
		case "file":
			if c.Audit.Mirror.Path == "" {
				return errors.New("audit.mirror.path is required when audit.mirror.type is \"file\"")
			}
		case "webhook":
			if c.Audit.Mirror.URL == "" {
				return errors.New("audit.mirror.url is required when audit.mirror.type is \"webhook\"")
			}
		default:
			return fmt.Errorf("audit.mirror.type %q must be \"file\" or \"webhook\"", c.Audit.Mirror.Type)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "botvault")
	v.SetDefault("database.user", "botvault")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.redis.addr", "")
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)

	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.metrics_port", 9090)

	v.SetDefault("audit.page_size", 50)
	v.SetDefault("audit.mirror.enabled", false)
	v.SetDefault("audit.mirror.type", "file")
	v.SetDefault("audit.mirror.path", "")
	v.SetDefault("audit.mirror.url", "")
	v.SetDefault("audit.mirror.timeout", 5*time.Second)
}

// bindEnvVars binds every config key so BV_-prefixed environment variables
// survive Unmarshal. viper.BindEnv only errors when called with zero keys;
// since every key here is a non-empty literal the error is structurally
// impossible, but it is still checked.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		"server.host", "server.port", "server.read_timeout", "server.write_timeout",
		"database.host", "database.port", "database.name", "database.user",
		"database.password", "database.ssl_mode", "database.max_connections",
		"database.min_idle_connections",
		"rate_limit.backend", "rate_limit.requests_per_minute", "rate_limit.window",
		"rate_limit.redis.addr", "rate_limit.redis.password", "rate_limit.redis.db",
		"logging.format", "logging.level",
		"telemetry.metrics_enabled", "telemetry.metrics_port",
		"audit.page_size",
		"audit.mirror.enabled", "audit.mirror.type", "audit.mirror.path",
		"audit.mirror.url", "audit.mirror.timeout",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var for %s: %w", key, err)
		}
	}
	return nil
}
