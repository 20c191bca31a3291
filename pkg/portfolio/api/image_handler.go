package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	"github.com/tendant/portfolio-admin/pkg/portfolio/reconcile"
)

// MaxUploadMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const MaxUploadMemory = 32 << 20

// ImageHandler serves the images collection. Create and update take
// multipart/form-data with the fields name, is_logo and file.
type ImageHandler struct {
	service  *portfolio.ImageService
	sweeper  *reconcile.Sweeper
	notifier portfolio.Notifier
}

// NewImageHandler creates an ImageHandler. POST /reconcile answers 501 when
// sweeper is nil.
func NewImageHandler(service *portfolio.ImageService, sweeper *reconcile.Sweeper, notifier portfolio.Notifier) *ImageHandler {
	if notifier == nil {
		notifier = portfolio.NopNotifier{}
	}
	return &ImageHandler{service: service, sweeper: sweeper, notifier: notifier}
}

// Routes returns the routes for images
func (h *ImageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/reconcile", h.Reconcile)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.GetImages(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, images)
}

func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	img, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, img)
}

func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := parseImageForm(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	defer form.close()

	draft := portfolio.ImageDraft{File: form.file}
	if form.name != nil {
		draft.Name = *form.name
	}
	if form.isLogo != nil {
		draft.IsLogo = *form.isLogo
	}
	img, err := h.service.CreateImage(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, img)
}

func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	form, err := parseImageForm(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	defer form.close()

	img, err := h.service.UpdateImage(r.Context(), id, portfolio.ImagePatch{
		Name:   form.name,
		IsLogo: form.isLogo,
		File:   form.file,
	})
	var orphan *portfolio.OrphanedBlobError
	if errors.As(err, &orphan) {
		// The row is committed; the service has already reported the
		// leftover object.
		slog.Warn("Image updated with orphaned file", "image_id", id, "path", orphan.Path)
		render.JSON(w, r, img)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, img)
}

// Delete removes the stored file and then the row.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	img, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.RemoveImage(r.Context(), img); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile runs one reconciliation sweep and returns its report.
func (h *ImageHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		render.Status(r, http.StatusNotImplemented)
		render.JSON(w, r, ErrorResponse{Error: http.StatusText(http.StatusNotImplemented), Detail: "reconciliation is not configured"})
		return
	}
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *ImageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	// Upload failures are already notified by the service.
	if errors.Is(err, portfolio.ErrUploadFailed) {
		renderError(w, r, err)
		return
	}
	failed(w, r, h.notifier, err)
}

type imageForm struct {
	name   *string
	isLogo *bool
	file   *portfolio.FileUpload
	closer multipart.File
}

func (f *imageForm) close() {
	if f.closer != nil {
		f.closer.Close()
	}
}

// parseImageForm reads the multipart fields that are present. Absent fields
// stay nil so an update only touches what was sent.
func parseImageForm(r *http.Request) (*imageForm, error) {
	if err := r.ParseMultipartForm(MaxUploadMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	form := &imageForm{}
	if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
		name := values[0]
		form.name = &name
	}
	if values, ok := r.MultipartForm.Value["is_logo"]; ok && len(values) > 0 && values[0] != "" {
		isLogo, err := strconv.ParseBool(values[0])
		if err != nil {
			return nil, fmt.Errorf("invalid is_logo value %q", values[0])
		}
		form.isLogo = &isLogo
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, fmt.Errorf("invalid file: %w", err)
	default:
		form.closer = file
		form.file = &portfolio.FileUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      file,
		}
	}
	return form, nil
}
