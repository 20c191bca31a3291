package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp, Bucket: "images", URLPrefix: "http://localhost:8080/storage/"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "logos/1700000000000_logo.png"

	// Upload
	data := []byte("hello fs")
	if _, err := backend.Upload(ctx, key, bytes.NewReader(data), portfolio.UploadOptions{}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	// Upload without upsert must not overwrite
	_, err = backend.Upload(ctx, key, bytes.NewReader([]byte("other")), portfolio.UploadOptions{})
	if !errors.Is(err, portfolio.ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}

	// Stat
	meta, err := backend.Stat(ctx, key)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), meta.Size)
	}
	if meta.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %s", meta.ContentType)
	}

	// Download
	rc, err := backend.Download(ctx, key)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) {
		t.Fatalf("download mismatch: %q", string(got))
	}

	// List
	objects, err := backend.List(ctx, "logos/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != key {
		t.Fatalf("unexpected list result: %+v", objects)
	}

	// Remove, including a missing key
	if err := backend.Remove(ctx, key, "missing.png"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "images", key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	// Empty parent directory is cleaned up
	if _, err := os.Stat(filepath.Join(tmp, "images", "logos")); !os.IsNotExist(err) {
		t.Fatalf("expected directory removed, stat err=%v", err)
	}
}

func TestFSBackend_KeepsUploadOptions(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp, Bucket: "images"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()
	key := "1_logo.png"

	opts := portfolio.UploadOptions{CacheControl: "3600", ContentType: "image/webp"}
	if _, err := backend.Upload(ctx, key, bytes.NewReader([]byte("webp")), opts); err != nil {
		t.Fatalf("upload: %v", err)
	}
	meta, err := backend.Stat(ctx, key)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if meta.CacheControl != "3600" || meta.ContentType != "image/webp" {
		t.Fatalf("expected stored options, got cache-control=%q content-type=%q", meta.CacheControl, meta.ContentType)
	}

	// Sidecars stay out of listings
	objects, err := backend.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != key {
		t.Fatalf("unexpected list result: %+v", objects)
	}

	// An upsert without options falls back to the extension
	if _, err := backend.Upload(ctx, key, bytes.NewReader([]byte("png")), portfolio.UploadOptions{Upsert: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	meta, err = backend.Stat(ctx, key)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if meta.CacheControl != "" || meta.ContentType != "image/png" {
		t.Fatalf("expected defaults after upsert, got cache-control=%q content-type=%q", meta.CacheControl, meta.ContentType)
	}

	if _, err := backend.Upload(ctx, key, bytes.NewReader([]byte("png")), portfolio.UploadOptions{Upsert: true, CacheControl: "60"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := backend.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, metaDir, "images", key+".json")); !os.IsNotExist(err) {
		t.Fatalf("expected metadata removed, stat err=%v", err)
	}
}

func TestFSBackend_PublicURL(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), Bucket: "images", URLPrefix: "http://localhost:8080/storage/"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if got := backend.PublicURL("a.png"); got != "http://localhost:8080/storage/images/a.png" {
		t.Fatalf("unexpected public url %s", got)
	}
}

func TestFSBackend_RejectsTraversal(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), Bucket: "images"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"../escape.txt", "a/../../b", "", "/abs"} {
		if _, err := backend.Upload(ctx, key, bytes.NewReader(nil), portfolio.UploadOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestFSBackend_DownloadMissing(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), Bucket: "images"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	_, err = backend.Download(context.Background(), "nope.png")
	var bse *portfolio.BlobStoreError
	if !errors.As(err, &bse) || bse.Op != "download" || !errors.Is(err, portfolio.ErrObjectNotFound) {
		t.Fatalf("expected download not found error, got %v", err)
	}
}

func TestNew_RequiresBaseDir(t *testing.T) {
	if _, err := New(Config{Bucket: "images"}); err == nil {
		t.Fatalf("expected error without base dir")
	}
}
