package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

// Presigner is implemented by blob stores that can hand out temporary
// direct download URLs.
type Presigner interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

// StorageHandler serves stored objects at /storage/{bucket}/{key} so the
// public URLs of the memory and filesystem stores resolve.
type StorageHandler struct {
	blobs portfolio.BlobStore
}

func NewStorageHandler(blobs portfolio.BlobStore) *StorageHandler {
	return &StorageHandler{blobs: blobs}
}

// Routes returns the routes for stored objects
func (h *StorageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{bucket}/*", h.Download)
	r.Head("/{bucket}/*", h.Download)
	return r
}

func (h *StorageHandler) Download(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "bucket") != h.blobs.Bucket() {
		http.NotFound(w, r)
		return
	}
	key := chi.URLParam(r, "*")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	if p, ok := h.blobs.(Presigner); ok {
		if url, err := p.PresignedURL(r.Context(), key); err == nil {
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
	}

	meta, err := h.blobs.Stat(r.Context(), key)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if cc := cacheControl(meta.CacheControl); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	if !meta.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := h.blobs.Download(r.Context(), key)
	if err != nil {
		renderError(w, r, err)
		return
	}
	defer body.Close()

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Error("Failed to stream object", "key", key, "error", err)
	}
}

// cacheControl expands a bare number of seconds into a max-age directive.
func cacheControl(v string) string {
	if v == "" {
		return ""
	}
	if _, err := strconv.Atoi(v); err == nil {
		return "public, max-age=" + v
	}
	return strings.TrimSpace(v)
}
