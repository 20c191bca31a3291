package redis

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultChannel = "portfolio:notifications"        // Pub/Sub channel every notification is published on
	DefaultListKey = "portfolio:notifications:recent" // Capped list of recent notifications, newest first
	DefaultMaxLen  = 100
)

// Sink publishes notifications on a Redis channel and keeps the most recent
// ones in a capped list.
type Sink struct {
	client  redis.UniversalClient
	channel string
	listKey string
	maxLen  int64
}

type Option func(*Sink)

// WithChannel sets the pub/sub channel notifications are published on.
func WithChannel(channel string) Option {
	return func(s *Sink) { s.channel = channel }
}

// WithListKey sets the list backing Recent.
func WithListKey(key string) Option {
	return func(s *Sink) { s.listKey = key }
}

// WithMaxLen caps the list length.
func WithMaxLen(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxLen = int64(n)
		}
	}
}

// New creates a Sink on client
func New(client redis.UniversalClient, opts ...Option) *Sink {
	s := &Sink{
		client:  client,
		channel: DefaultChannel,
		listKey: DefaultListKey,
		maxLen:  DefaultMaxLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Notify(ctx context.Context, n portfolio.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.listKey, data)
	pipe.LTrim(ctx, s.listKey, 0, s.maxLen-1)
	pipe.Publish(ctx, s.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Recent returns up to limit stored notifications, newest first
func (s *Sink) Recent(ctx context.Context, limit int) ([]portfolio.Notification, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, s.listKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	out := make([]portfolio.Notification, 0, len(raw))
	for _, item := range raw {
		var n portfolio.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Subscribe returns a subscription to the notification channel. Callers
// must close it.
func (s *Sink) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, s.channel)
}
