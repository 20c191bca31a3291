package portfolio

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds a Filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Query selects rows matching every filter, ordered by OrderBy.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Ascending bool
}

// Table is a typed client for one remote table. Every failure is reported as
// a *RemoteQueryError.
type Table[E any] interface {
	Name() string
	Select(ctx context.Context, q Query) ([]E, error)
	// Insert stores one row and returns it as persisted.
	Insert(ctx context.Context, values map[string]any) (E, error)
	// Update changes the row with the given id and returns it. A missing id
	// fails with KindNoRows.
	Update(ctx context.Context, id int64, values map[string]any) (E, error)
	// Delete removes the row with the given id. A missing id is not an error.
	Delete(ctx context.Context, id int64) error
}

// UploadOptions controls how an object is written.
type UploadOptions struct {
	CacheControl string
	ContentType  string
	// Upsert allows overwriting an existing key. When false an existing key
	// fails with ErrObjectExists.
	Upsert bool
}

// ObjectMeta describes a stored object.
type ObjectMeta struct {
	Key          string
	Size         int64
	ContentType  string
	CacheControl string
	UpdatedAt    time.Time
}

// BlobStore is an object store scoped to one bucket. Every failure is
// reported as a *BlobStoreError.
type BlobStore interface {
	Bucket() string
	// Upload writes the object and returns its key.
	Upload(ctx context.Context, key string, r io.Reader, opts UploadOptions) (string, error)
	// PublicURL returns the URL the object is served from.
	PublicURL(key string) string
	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (*ObjectMeta, error)
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)
}

// NotificationKind is the severity of a Notification.
type NotificationKind string

const (
	KindSuccess   NotificationKind = "success"
	KindInfo      NotificationKind = "info"
	KindWarn      NotificationKind = "warn"
	KindError     NotificationKind = "error"
	KindSecondary NotificationKind = "secondary"
	KindContrast  NotificationKind = "contrast"
)

// Default display durations.
const (
	DefaultLife = 3 * time.Second
	ErrorLife   = 6 * time.Second
)

// Notification is a user facing message.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Kind      NotificationKind `json:"severity"`
	Summary   string           `json:"summary"`
	Detail    string           `json:"detail"`
	Life      time.Duration    `json:"life"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification fills in ID, CreatedAt and the default life for kind.
func NewNotification(kind NotificationKind, summary, detail string) Notification {
	life := DefaultLife
	if kind == KindError {
		life = ErrorLife
	}
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Summary:   summary,
		Detail:    detail,
		Life:      life,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier receives notifications. Implementations live in package notify.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
