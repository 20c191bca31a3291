package portfolio

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrUploadFailed matches any BlobStoreError raised by an upload
	ErrUploadFailed = errors.New("upload failed")

	// ErrObjectNotFound indicates the blob store has no object for a key
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists indicates an upload without upsert hit an existing key
	ErrObjectExists = errors.New("object already exists")

	// ErrNoRows indicates an operation that needs exactly one row matched none
	ErrNoRows = errors.New("no rows returned")
)

// QueryErrorKind is the closed set of failures a Table can report.
type QueryErrorKind string

const (
	KindNoRows      QueryErrorKind = "no_rows"
	KindConflict    QueryErrorKind = "conflict"
	KindInvalid     QueryErrorKind = "invalid"
	KindUnavailable QueryErrorKind = "unavailable"
	KindUnknown     QueryErrorKind = "unknown"
)

// RemoteQueryError is returned by every Table implementation when the row
// store rejects an operation.
type RemoteQueryError struct {
	Table   string
	Op      string
	Kind    QueryErrorKind
	Code    string // backend specific code, e.g. a SQLSTATE
	Message string
	Err     error
}

func (e *RemoteQueryError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Table, msg)
}

func (e *RemoteQueryError) Unwrap() error {
	return e.Err
}

// Is lets callers match a no-rows failure with errors.Is(err, ErrNoRows).
func (e *RemoteQueryError) Is(target error) bool {
	return target == ErrNoRows && e.Kind == KindNoRows
}

// QueryError builds a RemoteQueryError.
func QueryError(table, op string, kind QueryErrorKind, err error) *RemoteQueryError {
	qe := &RemoteQueryError{Table: table, Op: op, Kind: kind, Err: err}
	if err != nil {
		qe.Message = err.Error()
	}
	return qe
}

// QueryErrorKindOf returns the kind of the first RemoteQueryError in err's
// chain, or KindUnknown.
func QueryErrorKindOf(err error) QueryErrorKind {
	var qe *RemoteQueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUnknown
}

// BlobStoreError represents a failed blob store operation
type BlobStoreError struct {
	Bucket string
	Key    string
	Op     string
	Err    error
}

func (e *BlobStoreError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s in bucket %s: %v", e.Op, e.Key, e.Bucket, e.Err)
}

func (e *BlobStoreError) Unwrap() error {
	return e.Err
}

// Is lets callers match upload failures with errors.Is(err, ErrUploadFailed).
func (e *BlobStoreError) Is(target error) bool {
	return target == ErrUploadFailed && e.Op == "upload"
}

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Required collects the names whose value is empty and returns a
// ValidationError listing them, or nil.
func Required(fields ...FieldValue) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}

// FieldValue pairs a field name with its raw value for Required.
type FieldValue struct {
	Name  string
	Value string
}

// Field is a shorthand constructor for FieldValue.
func Field(name, value string) FieldValue {
	return FieldValue{Name: name, Value: value}
}

// OrphanedBlobError is returned next to a successfully updated image when the
// blob it replaced could not be removed. The row change is committed.
type OrphanedBlobError struct {
	ImageID int64
	Path    string
	Err     error
}

func (e *OrphanedBlobError) Error() string {
	return fmt.Sprintf("image %d updated but previous file %s could not be removed: %v", e.ImageID, e.Path, e.Err)
}

func (e *OrphanedBlobError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
