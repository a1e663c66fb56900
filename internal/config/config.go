// Package config loads runtime settings: defaults, then an optional YAML
// file, then .env, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Blob drivers.
const (
	BlobNone   = "none"
	BlobFS     = "fs"
	BlobMemory = "memory"
	BlobS3     = "s3"
)

// Audit sink names accepted in Audit.Sinks.
const (
	SinkLog      = "log"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
	Blob    BlobConfig    `yaml:"blob"`
	Retry   RetryConfig   `yaml:"retry"`
}

type StoreConfig struct {
	Driver      string        `yaml:"driver"`
	DatabaseURL string        `yaml:"database_url"`
	SQLitePath  string        `yaml:"sqlite_path"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// ServerConfig holds HTTP settings. TokenTTL bounds tokens minted by the
// token command.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type AuditConfig struct {
	Sinks        []string `yaml:"sinks"`
	Buffer       int      `yaml:"buffer"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type BlobConfig struct {
	Driver      string        `yaml:"driver"`
	FSRoot      string        `yaml:"fs_root"`
	S3Bucket    string        `yaml:"s3_bucket"`
	S3Region    string        `yaml:"s3_region"`
	S3Endpoint  string        `yaml:"s3_endpoint"`
	S3PathStyle bool          `yaml:"s3_path_style"`
	PresignTTL  time.Duration `yaml:"presign_ttl"`
}

type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      DriverMemory,
			SQLitePath:  "data/warehouse.db",
			LockTimeout: 2 * time.Second,
		},
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			TokenTTL:        12 * time.Hour,
			MaxUploadBytes:  5 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Audit: AuditConfig{
			Sinks:      []string{SinkLog},
			Buffer:     1024,
			KafkaTopic: "warehouse.audit",
		},
		Blob: BlobConfig{
			Driver:     BlobNone,
			FSRoot:     "data/reports",
			PresignTTL: 15 * time.Minute,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 20 * time.Millisecond,
			MaxDelay:  500 * time.Millisecond,
		},
	}
}

// Load reads path (a missing file yields defaults), loads .env if present
// and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("STORE_DRIVER", &c.Store.Driver)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("SERVER_PORT", &c.Server.Port)
	list("ALLOWED_ORIGINS", &c.Server.AllowedOrigins)
	str("JWT_SECRET", &c.Server.JWTSecret)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	list("AUDIT_SINKS", &c.Audit.Sinks)
	list("KAFKA_BROKERS", &c.Audit.KafkaBrokers)
	str("KAFKA_AUDIT_TOPIC", &c.Audit.KafkaTopic)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3Endpoint)
	if v := os.Getenv("BLOB_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3PathStyle = b
	}
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	for key, dst := range map[string]*time.Duration{
		"RETRY_BASE_DELAY": &c.Retry.BaseDelay,
		"LOCK_TIMEOUT":     &c.Store.LockTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store driver postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Blob.Driver {
	case BlobNone, BlobFS, BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("blob driver s3 requires BLOB_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case SinkLog:
		case SinkKafka:
			if len(c.Audit.KafkaBrokers) == 0 {
				return fmt.Errorf("audit sink kafka requires KAFKA_BROKERS")
			}
		case SinkPostgres:
			if c.Store.Driver != DriverPostgres {
				return fmt.Errorf("audit sink postgres requires the postgres store driver")
			}
		default:
			return fmt.Errorf("unknown audit sink %q", sink)
		}
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Store.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive")
	}
	return nil
}

// ValidateServer additionally checks what the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to run the server")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
