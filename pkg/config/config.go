package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for fiscal-engine.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and workers.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Grievances GrievancesConfig `yaml:"grievances"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// AuthConfig holds session token and cookie settings.
type AuthConfig struct {
	// SessionSecret signs session tokens and cookies. Secret - not in YAML.
	SessionSecret string        `yaml:"-" env:"SESSION_SECRET"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"12h"`
	Issuer        string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"fiscal-engine"`
	CookieName    string        `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"fiscal_session"`
	CookieSecure  bool          `yaml:"cookie_secure" env:"AUTH_COOKIE_SECURE" env-default:"false"`
	// BcryptCost is the work factor for password hashes.
	BcryptCost int `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"12"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"fiscal"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"fiscal_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the read cache connection. An empty Host disables caching.
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_CACHE_TTL" env-default:"5m"`
}

// Enabled reports whether a Redis host was configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StorageConfig holds the S3-compatible object store used for attachments.
// An empty Endpoint disables attachment uploads.
type StorageConfig struct {
	Endpoint  string        `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:""`
	AccessKey string        `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:""`
	SecretKey string        `yaml:"-" env:"MINIO_SECRET_KEY"` // Secret - not in YAML
	Bucket    string        `yaml:"bucket" env:"MINIO_BUCKET" env-default:"fiscal-attachments"`
	UseSSL    bool          `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	UploadTTL time.Duration `yaml:"upload_ttl" env:"MINIO_UPLOAD_TTL" env-default:"15m"`
}

// Enabled reports whether an object store endpoint was configured.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

// WorkflowConfig tunes the approval engine.
type WorkflowConfig struct {
	// AllowEscalation lets a higher level act on a lower stage.
	AllowEscalation bool `yaml:"allow_escalation" env:"WORKFLOW_ALLOW_ESCALATION" env-default:"false"`
	// EnforceJurisdiction restricts officials to projects inside their own area.
	EnforceJurisdiction bool `yaml:"enforce_jurisdiction" env:"WORKFLOW_ENFORCE_JURISDICTION" env-default:"false"`

	NotificationQueueSize  int           `yaml:"notification_queue_size" env:"NOTIFICATION_QUEUE_SIZE" env-default:"256"`
	NotificationMaxRetries int           `yaml:"notification_max_retries" env:"NOTIFICATION_MAX_RETRIES" env-default:"3"`
	NotificationBackoff    time.Duration `yaml:"notification_backoff" env:"NOTIFICATION_BACKOFF" env-default:"200ms"`
}

// GrievancesConfig holds limits for the public grievance form.
type GrievancesConfig struct {
	// ScreenInjection rejects grievance text that looks like SQL injection or XSS.
	ScreenInjection bool `yaml:"screen_injection" env:"GRIEVANCE_SCREEN_INJECTION" env-default:"true"`
	MaxMessageBytes int  `yaml:"max_message_bytes" env:"GRIEVANCE_MAX_MESSAGE_BYTES" env-default:"8192"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: the configuration then comes from the
// environment alone. The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	if cfg.Redis.Enabled() {
		cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Workflow.NotificationQueueSize <= 0 {
		return fmt.Errorf("workflow.notification_queue_size must be positive")
	}
	if c.Workflow.NotificationMaxRetries < 0 {
		return fmt.Errorf("workflow.notification_max_retries must not be negative")
	}
	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage endpoint set without MINIO_ACCESS_KEY/MINIO_SECRET_KEY")
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
