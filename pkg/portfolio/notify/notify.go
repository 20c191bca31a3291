// Package notify provides portfolio.Notifier implementations: a slog
// logger, an in-memory feed of recent notifications and a fan-out that
// delivers to several sinks. Redis and RabbitMQ sinks live in the
// subpackages.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

// Log writes every notification to a slog.Logger. Errors are logged at
// error level, warnings at warn level and everything else at info.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n portfolio.Notification) error {
	level := slog.LevelInfo
	switch n.Kind {
	case portfolio.KindError:
		level = slog.LevelError
	case portfolio.KindWarn:
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Summary,
		"severity", n.Kind,
		"detail", n.Detail,
		"notification_id", n.ID,
	)
	return nil
}

// Feed keeps the most recent notifications in memory, newest first.
type Feed struct {
	mu    sync.RWMutex
	items []portfolio.Notification
	size  int
	next  int
	count int
}

// DefaultFeedSize is used when NewFeed is given a non-positive size.
const DefaultFeedSize = 100

// NewFeed creates a Feed keeping the last size notifications.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]portfolio.Notification, size), size: size}
}

func (f *Feed) Notify(ctx context.Context, n portfolio.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = n
	f.next = (f.next + 1) % f.size
	if f.count < f.size {
		f.count++
	}
	return nil
}

// Recent returns up to limit notifications, newest first. A non-positive
// limit returns everything kept.
func (f *Feed) Recent(ctx context.Context, limit int) ([]portfolio.Notification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if limit <= 0 || limit > f.count {
		limit = f.count
	}
	out := make([]portfolio.Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + f.size) % f.size
		out = append(out, f.items[idx])
	}
	return out, nil
}

// Multi delivers to every sink and joins their errors.
type Multi []portfolio.Notifier

func (m Multi) Notify(ctx context.Context, n portfolio.Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reader is implemented by sinks that can return past notifications.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]portfolio.Notification, error)
}
