// Package reconcile finds image rows and stored objects that no longer
// point at each other. Objects without a row are removed once they are
// older than a grace period; rows without an object are only reported.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

// DefaultGrace keeps objects uploaded by an in-flight create from being
// swept before their row is inserted.
const DefaultGrace = 10 * time.Minute

// ErrSweepInProgress is returned when Sweep is called while another sweep runs.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Report is the outcome of one sweep.
type Report struct {
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	Rows         int               `json:"rows"`
	Objects      int               `json:"objects"`
	RemovedBlobs []string          `json:"removed_blobs"`
	KeptBlobs    []string          `json:"kept_blobs"`
	DanglingRows []portfolio.Image `json:"dangling_rows"`
	DryRun       bool              `json:"dry_run"`
}

// Sweeper compares the images table with the blob store.
type Sweeper struct {
	images   portfolio.Table[portfolio.Image]
	blobs    portfolio.BlobStore
	grace    time.Duration
	dryRun   bool
	now      func() time.Time
	notifier portfolio.Notifier
	logger   *slog.Logger

	running sync.Mutex
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithGrace sets how old an unreferenced object must be before removal.
func WithGrace(d time.Duration) Option {
	return func(s *Sweeper) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithDryRun reports what would be removed without removing it.
func WithDryRun(dryRun bool) Option {
	return func(s *Sweeper) { s.dryRun = dryRun }
}

// WithClock replaces time.Now when judging the grace period.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier reports each sweep that found something.
func WithNotifier(n portfolio.Notifier) Option {
	return func(s *Sweeper) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Sweeper comparing the images table with blobs.
func New(images portfolio.Table[portfolio.Image], blobs portfolio.BlobStore, opts ...Option) *Sweeper {
	s := &Sweeper{
		images:   images,
		blobs:    blobs,
		grace:    DefaultGrace,
		now:      time.Now,
		notifier: portfolio.NopNotifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.running.Unlock()

	report := &Report{
		StartedAt:    s.now().UTC(),
		RemovedBlobs: []string{},
		KeptBlobs:    []string{},
		DanglingRows: []portfolio.Image{},
		DryRun:       s.dryRun,
	}

	rows, err := s.images.Select(ctx, portfolio.Query{OrderBy: "id", Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("error listing images: %w", err)
	}
	objects, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error listing stored files: %w", err)
	}
	report.Rows = len(rows)
	report.Objects = len(objects)

	referenced := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		referenced[row.Path] = struct{}{}
	}
	stored := make(map[string]struct{}, len(objects))
	var orphans []string
	for _, obj := range objects {
		stored[obj.Key] = struct{}{}
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if s.expired(obj) {
			orphans = append(orphans, obj.Key)
		} else {
			report.KeptBlobs = append(report.KeptBlobs, obj.Key)
		}
	}
	for _, row := range rows {
		if _, ok := stored[row.Path]; !ok {
			report.DanglingRows = append(report.DanglingRows, row)
		}
	}

	if len(orphans) > 0 && !s.dryRun {
		if err := s.blobs.Remove(ctx, orphans...); err != nil {
			return nil, fmt.Errorf("error removing orphaned files: %w", err)
		}
	}
	report.RemovedBlobs = append(report.RemovedBlobs, orphans...)
	report.Duration = s.now().Sub(report.StartedAt)

	s.report(ctx, report)
	return report, nil
}

func (s *Sweeper) expired(obj portfolio.ObjectMeta) bool {
	if s.grace == 0 {
		return true
	}
	if obj.UpdatedAt.IsZero() {
		return false
	}
	return s.now().Sub(obj.UpdatedAt) >= s.grace
}

func (s *Sweeper) report(ctx context.Context, r *Report) {
	s.logger.Info("Image reconciliation finished",
		"rows", r.Rows,
		"objects", r.Objects,
		"removed", len(r.RemovedBlobs),
		"dangling", len(r.DanglingRows),
		"dry_run", r.DryRun,
	)
	if len(r.RemovedBlobs) == 0 && len(r.DanglingRows) == 0 {
		return
	}

	kind := portfolio.KindInfo
	if len(r.DanglingRows) > 0 {
		kind = portfolio.KindWarn
	}
	verb := "removed"
	if r.DryRun {
		verb = "would remove"
	}
	detail := fmt.Sprintf("%s %d orphaned files, %d images reference missing files", verb, len(r.RemovedBlobs), len(r.DanglingRows))
	if err := s.notifier.Notify(ctx, portfolio.NewNotification(kind, "Image reconciliation", detail)); err != nil {
		s.logger.Warn("Failed to deliver notification", "error", err)
	}
}

// Schedule runs Sweep on a cron schedule until the returned cron is stopped.
// Each run is bounded by timeout.
func (s *Sweeper) Schedule(schedule string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Image reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	c.Start()
	s.logger.Info("Image reconciliation scheduled", "schedule", schedule)
	return c, nil
}
