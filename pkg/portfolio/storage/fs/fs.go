package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// metaDir holds the sidecar files, outside every bucket directory.
const metaDir = ".meta"

// Backend is a filesystem implementation of the portfolio.BlobStore interface.
// Objects live under {BaseDir}/{Bucket}/{key}, their upload options under
// {BaseDir}/.meta/{Bucket}/{key}.json.
type Backend struct {
	mu        sync.Mutex
	bucket    string
	dir       string
	metaDir   string
	urlPrefix string
}

// sidecar is the part of UploadOptions a plain file cannot carry.
type sidecar struct {
	ContentType  string `json:"content_type,omitempty"`
	CacheControl string `json:"cache_control,omitempty"`
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	Bucket    string // Subdirectory of BaseDir holding the objects
	URLPrefix string // Prefix of public URLs, e.g. http://localhost:8080/storage
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	dir := filepath.Join(config.BaseDir, config.Bucket)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		bucket:    config.Bucket,
		dir:       dir,
		metaDir:   filepath.Join(config.BaseDir, metaDir, config.Bucket),
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

func (b *Backend) Bucket() string {
	return b.bucket
}

func (b *Backend) PublicURL(key string) string {
	return b.urlPrefix + "/" + b.bucket + "/" + key
}

// resolve maps key to a file path inside the bucket directory
func (b *Backend) resolve(op, key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if key == "" || clean != key || !iofs.ValidPath(clean) {
		return "", b.fail(op, key, fmt.Errorf("invalid object key %q", key))
	}
	return filepath.Join(b.dir, filepath.FromSlash(clean)), nil
}

// Upload writes the content of reader to the filesystem
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, opts portfolio.UploadOptions) (string, error) {
	filePath, err := b.resolve("upload", key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", b.fail("upload", key, fmt.Errorf("failed to create directory: %w", err))
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0644)
	if errors.Is(err, iofs.ErrExist) {
		return "", b.fail("upload", key, portfolio.ErrObjectExists)
	} else if err != nil {
		return "", b.fail("upload", key, fmt.Errorf("failed to create file: %w", err))
	}

	_, err = io.Copy(file, reader)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(filePath)
		return "", b.fail("upload", key, fmt.Errorf("failed to write file: %w", err))
	}
	if err := b.writeSidecar(filePath, sidecar{ContentType: opts.ContentType, CacheControl: opts.CacheControl}); err != nil {
		os.Remove(filePath)
		return "", b.fail("upload", key, fmt.Errorf("failed to write metadata: %w", err))
	}
	return key, nil
}

// Remove deletes the files; keys that do not exist are skipped
func (b *Backend) Remove(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		filePath, err := b.resolve("remove", key)
		if err != nil {
			return err
		}
		if err := os.Remove(filePath); err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			return b.fail("remove", key, fmt.Errorf("failed to delete file: %w", err))
		}
		b.cleanupEmptyDirectories(b.dir, filepath.Dir(filePath))

		metaPath := b.sidecarPath(filePath)
		if err := os.Remove(metaPath); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return b.fail("remove", key, fmt.Errorf("failed to delete metadata: %w", err))
		}
		b.cleanupEmptyDirectories(b.metaDir, filepath.Dir(metaPath))
	}
	return nil
}

// Download opens the file for key
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := b.resolve("download", key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, b.fail("download", key, portfolio.ErrObjectNotFound)
	} else if err != nil {
		return nil, b.fail("download", key, fmt.Errorf("failed to open file: %w", err))
	}
	return file, nil
}

// Stat retrieves metadata for an object in the filesystem
func (b *Backend) Stat(ctx context.Context, key string) (*portfolio.ObjectMeta, error) {
	filePath, err := b.resolve("stat", key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, b.fail("stat", key, portfolio.ErrObjectNotFound)
	} else if err != nil {
		return nil, b.fail("stat", key, fmt.Errorf("failed to get file info: %w", err))
	}

	meta := &portfolio.ObjectMeta{
		Key:       key,
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}
	sc, err := b.readSidecar(filePath)
	if err != nil {
		return nil, b.fail("stat", key, fmt.Errorf("failed to read metadata: %w", err))
	}
	meta.ContentType = sc.ContentType
	meta.CacheControl = sc.CacheControl
	if meta.ContentType == "" {
		meta.ContentType = detectContentType(filePath)
	}
	return meta, nil
}

// List walks the bucket directory and returns objects whose key starts with prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]portfolio.ObjectMeta, error) {
	result := []portfolio.ObjectMeta{}
	err := filepath.WalkDir(b.dir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		result = append(result, portfolio.ObjectMeta{
			Key:       key,
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, b.fail("list", prefix, err)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to root
func (b *Backend) cleanupEmptyDirectories(root, dir string) {
	if dir == root || !strings.HasPrefix(dir, root) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(root, filepath.Dir(dir))
		}
	}
}

func (b *Backend) sidecarPath(filePath string) string {
	rel, _ := filepath.Rel(b.dir, filePath)
	return filepath.Join(b.metaDir, rel) + ".json"
}

// writeSidecar stores sc next to filePath, or drops a stale one when sc is empty.
func (b *Backend) writeSidecar(filePath string, sc sidecar) error {
	metaPath := b.sidecarPath(filePath)
	if sc == (sidecar{}) {
		if err := os.Remove(metaPath); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(metaPath, data, 0644)
}

// readSidecar returns the stored upload options; a missing sidecar is empty.
func (b *Backend) readSidecar(filePath string) (sidecar, error) {
	var sc sidecar
	data, err := os.ReadFile(b.sidecarPath(filePath))
	if errors.Is(err, iofs.ErrNotExist) {
		return sc, nil
	} else if err != nil {
		return sc, err
	}
	err = json.Unmarshal(data, &sc)
	return sc, err
}

func (b *Backend) fail(op, key string, err error) error {
	return &portfolio.BlobStoreError{Bucket: b.bucket, Key: key, Op: op, Err: err}
}

func detectContentType(filePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		return ct
	}
	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}
	return contentType
}
