// Package config loads server settings and wires the portfolio services
// they describe.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// defaults and validates the result.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		StorageURL:     "memory://",
		StorageBucket:  "images",
		S3:             S3Config{Region: "us-east-1", PresignSeconds: 3600},
		AMQPExchange:   "portfolio.events",
		ReconcileGrace: 10 * time.Minute,
		SessionTTL:     24 * time.Hour,
		FeedSize:       100,
	}
}

// ServerConfig represents the settings of the portfolio admin server. The
// env tags are read by WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Row store: "memory" or a postgres:// URL
	StoreURL string `env:"STORE_URL" env-required:"true"`
	// Secret signing session tokens
	StoreKey string `env:"STORE_KEY" env-required:"true"`

	// Blob store: memory://, file:///dir or s3://bucket
	StorageURL       string `env:"STORAGE_URL" env-default:"memory://"`
	StorageBucket    string `env:"STORAGE_BUCKET" env-default:"images"`
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`
	S3               S3Config

	RedisURL     string `env:"REDIS_URL"`
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" env-default:"portfolio.events"`
	FeedSize     int    `env:"NOTIFICATION_FEED_SIZE" env-default:"100"`

	PublicAPIKeySHA256 string `env:"PUBLIC_API_KEY_SHA256"`

	ReconcileSchedule string        `env:"RECONCILE_SCHEDULE"`
	ReconcileGrace    time.Duration `env:"RECONCILE_GRACE" env-default:"10m"`

	SessionTTL time.Duration `env:"SESSION_TTL" env-default:"24h"`
	// AllowSignUp mounts POST /auth/sign-up. Leave off once the admin account exists.
	AllowSignUp bool `env:"ALLOW_SIGN_UP" env-default:"false"`
}

// S3Config holds the options of the s3:// blob store.
type S3Config struct {
	Region          string `env:"S3_REGION" env-default:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-default:"false"`
	PresignSeconds  int    `env:"S3_PRESIGN_SECONDS" env-default:"3600"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be 'development', 'production' or 'testing', got: %s", c.Environment)
	}

	if c.StoreURL == "" {
		return errors.New("STORE_URL is required")
	}
	if _, err := c.storeType(); err != nil {
		return err
	}
	if c.StoreKey == "" {
		return errors.New("STORE_KEY is required")
	}

	if _, err := c.storage(); err != nil {
		return err
	}
	if c.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.ReconcileGrace < 0 {
		return errors.New("reconcile grace must not be negative")
	}
	if c.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(c.ReconcileSchedule); err != nil {
			return fmt.Errorf("invalid RECONCILE_SCHEDULE %q: %w", c.ReconcileSchedule, err)
		}
	}
	return nil
}

// storeType returns "memory" or "postgres".
func (c *ServerConfig) storeType() (string, error) {
	switch {
	case c.StoreURL == "memory" || c.StoreURL == "memory://":
		return "memory", nil
	case strings.HasPrefix(c.StoreURL, "postgres://"), strings.HasPrefix(c.StoreURL, "postgresql://"):
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported STORE_URL format: %s (use 'memory' or 'postgres://...')", c.StoreURL)
}

// storageTarget is a parsed STORAGE_URL.
type storageTarget struct {
	Type   string // "memory", "fs", "s3"
	Dir    string // fs only
	Bucket string
	Region string // s3 only, from ?region=
}

func (c *ServerConfig) storage() (storageTarget, error) {
	raw := c.StorageURL
	if raw == "" || raw == "memory" || raw == "memory://" {
		return storageTarget{Type: "memory", Bucket: c.bucket("")}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return storageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	switch u.Scheme {
	case "file":
		dir := u.Host + u.Path
		if dir == "" {
			return storageTarget{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return storageTarget{Type: "fs", Dir: dir, Bucket: c.bucket("")}, nil
	case "s3":
		if u.Host == "" {
			return storageTarget{}, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		return storageTarget{Type: "s3", Bucket: c.bucket(u.Host), Region: u.Query().Get("region")}, nil
	}
	return storageTarget{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

// bucket prefers the bucket named in the storage URL.
func (c *ServerConfig) bucket(fromURL string) string {
	if fromURL != "" {
		return fromURL
	}
	if c.StorageBucket != "" {
		return c.StorageBucket
	}
	return "images"
}

// publicBase is the prefix of public object URLs for the memory and
// filesystem stores.
func (c *ServerConfig) publicBase() string {
	if c.StoragePublicURL != "" {
		return strings.TrimSuffix(c.StoragePublicURL, "/")
	}
	return "/storage"
}
