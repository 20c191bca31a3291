package portfolio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/portfolio-admin/pkg/portfolio/objectkey"
)

// Entity describes how a service names and orders its table rows.
type Entity struct {
	Singular  string // "technology"
	Plural    string // "technologies"
	Label     string // "Technology"
	OrderBy   string
	Ascending bool
}

// settings are shared by every service constructor.
type settings struct {
	notifier Notifier
	logger   *slog.Logger
	keys     objectkey.Generator
}

// Option configures a service.
type Option func(*settings)

// WithNotifier sets the sink that receives success and failure messages.
func WithNotifier(n Notifier) Option {
	return func(s *settings) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger used for failures the caller cannot see.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{notifier: NopNotifier{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// EntityService is typed CRUD over one table.
type EntityService[E any] struct {
	table  Table[E]
	entity Entity
	settings
}

// NewEntityService builds a service for the given table.
func NewEntityService[E any](table Table[E], entity Entity, opts ...Option) *EntityService[E] {
	return &EntityService[E]{
		table:    table,
		entity:   entity,
		settings: newSettings(opts),
	}
}

// Entity returns the descriptor of the service.
func (s *EntityService[E]) Entity() Entity {
	return s.entity
}

// List returns every row in the entity's order. A failure is also sent to
// the notifier.
func (s *EntityService[E]) List(ctx context.Context) ([]E, error) {
	return s.ListWhere(ctx)
}

// ListWhere is List restricted by equality filters.
func (s *EntityService[E]) ListWhere(ctx context.Context, filters ...Filter) ([]E, error) {
	rows, err := s.table.Select(ctx, Query{
		Filters:   filters,
		OrderBy:   s.entity.OrderBy,
		Ascending: s.entity.Ascending,
	})
	if err != nil {
		err = fmt.Errorf("error listing %s: %w", s.entity.Plural, err)
		s.notifyError(ctx, err)
		return nil, err
	}
	if rows == nil {
		rows = []E{}
	}
	return rows, nil
}

// Get returns the row with the given id.
func (s *EntityService[E]) Get(ctx context.Context, id int64) (E, error) {
	var zero E
	rows, err := s.table.Select(ctx, Query{Filters: []Filter{Eq("id", id)}})
	if err != nil {
		return zero, fmt.Errorf("error getting %s %d: %w", s.entity.Singular, id, err)
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("error getting %s %d: %w", s.entity.Singular, id,
			QueryError(s.table.Name(), "select", KindNoRows, ErrNoRows))
	}
	return rows[0], nil
}

// Create validates the draft and inserts it.
func (s *EntityService[E]) Create(ctx context.Context, draft Draft) (E, error) {
	var zero E
	if err := draft.Validate(); err != nil {
		return zero, fmt.Errorf("error creating %s: %w", s.entity.Singular, err)
	}
	row, err := s.table.Insert(ctx, draft.Columns())
	if err != nil {
		return zero, fmt.Errorf("error creating %s: %w", s.entity.Singular, err)
	}
	s.notifySuccess(ctx, "created")
	return row, nil
}

// Update writes the fields set in patch to the row with the given id.
func (s *EntityService[E]) Update(ctx context.Context, id int64, patch Draft) (E, error) {
	var zero E
	if err := patch.Validate(); err != nil {
		return zero, fmt.Errorf("error updating %s: %w", s.entity.Singular, err)
	}
	row, err := s.table.Update(ctx, id, patch.Columns())
	if err != nil {
		return zero, fmt.Errorf("error updating %s: %w", s.entity.Singular, err)
	}
	s.notifySuccess(ctx, "updated")
	return row, nil
}

// Delete removes the row with the given id.
func (s *EntityService[E]) Delete(ctx context.Context, id int64) error {
	if err := s.table.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting %s: %w", s.entity.Singular, err)
	}
	s.notifySuccess(ctx, "deleted")
	return nil
}

func (s *EntityService[E]) notifySuccess(ctx context.Context, verb string) {
	notify(ctx, s.settings, NewNotification(KindSuccess, "Success",
		fmt.Sprintf("%s %s successfully", s.entity.Label, verb)))
}

func (s *EntityService[E]) notifyError(ctx context.Context, err error) {
	notify(ctx, s.settings, NewNotification(KindError, "Error", err.Error()))
}

func notify(ctx context.Context, s settings, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to deliver notification", "severity", n.Kind, "error", err)
	}
}
