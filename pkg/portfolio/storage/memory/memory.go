package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

type object struct {
	data         []byte
	contentType  string
	cacheControl string
	updatedAt    time.Time
}

// Backend is an in-memory implementation of the portfolio.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	bucket  string
	baseURL string
	objects map[string]object
}

// New creates a new in-memory storage backend. Public URLs are
// {publicBaseURL}/{bucket}/{key}.
func New(bucket, publicBaseURL string) *Backend {
	return &Backend{
		bucket:  bucket,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		objects: make(map[string]object),
	}
}

func (b *Backend) Bucket() string {
	return b.bucket
}

// Upload stores the content of reader under key
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, opts portfolio.UploadOptions) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", b.fail("upload", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", b.fail("upload", key, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; exists && !opts.Upsert {
		return "", b.fail("upload", key, portfolio.ErrObjectExists)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.objects[key] = object{
		data:         data,
		contentType:  contentType,
		cacheControl: opts.CacheControl,
		updatedAt:    time.Now().UTC(),
	}
	return key, nil
}

func (b *Backend) PublicURL(key string) string {
	return b.baseURL + "/" + b.bucket + "/" + key
}

// Remove deletes the objects; unknown keys are skipped
func (b *Backend) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return b.fail("remove", strings.Join(keys, ","), err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.objects, key)
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, b.fail("download", key, portfolio.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Stat retrieves metadata for an object in memory
func (b *Backend) Stat(ctx context.Context, key string) (*portfolio.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, b.fail("stat", key, portfolio.ErrObjectNotFound)
	}
	meta := obj.meta(key)
	return &meta, nil
}

// List returns every object whose key starts with prefix, ordered by key
func (b *Backend) List(ctx context.Context, prefix string) ([]portfolio.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []portfolio.ObjectMeta{}
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, obj.meta(key))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (o object) meta(key string) portfolio.ObjectMeta {
	return portfolio.ObjectMeta{
		Key:          key,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		CacheControl: o.cacheControl,
		UpdatedAt:    o.updatedAt,
	}
}

func (b *Backend) fail(op, key string, err error) error {
	return &portfolio.BlobStoreError{Bucket: b.bucket, Key: key, Op: op, Err: err}
}
