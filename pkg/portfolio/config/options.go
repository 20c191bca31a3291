package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithStore sets the row store URL and the session signing key
func WithStore(storeURL, storeKey string) Option {
	return func(c *ServerConfig) error {
		c.StoreURL = storeURL
		c.StoreKey = storeKey
		return nil
	}
}

// WithStorage sets the blob store URL and bucket
func WithStorage(storageURL, bucket string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = storageURL
		if bucket != "" {
			c.StorageBucket = bucket
		}
		return nil
	}
}

// WithRedis enables the Redis notification feed and session store
func WithRedis(redisURL string) Option {
	return func(c *ServerConfig) error {
		c.RedisURL = redisURL
		return nil
	}
}

// WithAMQP enables publishing notifications to RabbitMQ
func WithAMQP(amqpURL, exchange string) Option {
	return func(c *ServerConfig) error {
		c.AMQPURL = amqpURL
		if exchange != "" {
			c.AMQPExchange = exchange
		}
		return nil
	}
}

// WithReconcile schedules the image reconciliation sweep. An empty schedule
// leaves it on demand only.
func WithReconcile(schedule string, grace time.Duration) Option {
	return func(c *ServerConfig) error {
		if grace < 0 {
			return fmt.Errorf("reconcile grace must not be negative, got: %s", grace)
		}
		c.ReconcileSchedule = schedule
		c.ReconcileGrace = grace
		return nil
	}
}

// WithPublicAPIKey enables the public read API for the key with this
// SHA-256 hash
func WithPublicAPIKey(sha256Hex string) Option {
	return func(c *ServerConfig) error {
		c.PublicAPIKeySHA256 = sha256Hex
		return nil
	}
}

// WithSessionTTL sets how long a sign-in stays valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl <= 0 {
			return fmt.Errorf("session TTL must be positive, got: %s", ttl)
		}
		c.SessionTTL = ttl
		return nil
	}
}

// WithSignUp opens or closes POST /auth/sign-up
func WithSignUp(allow bool) Option {
	return func(c *ServerConfig) error {
		c.AllowSignUp = allow
		return nil
	}
}
