package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	jsoniter "github.com/json-iterator/go"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CRUD is the service surface EntityHandler drives. *EntityService[E] and
// the per-entity services all satisfy it.
type CRUD[E any] interface {
	List(ctx context.Context) ([]E, error)
	Get(ctx context.Context, id int64) (E, error)
	Create(ctx context.Context, draft portfolio.Draft) (E, error)
	Update(ctx context.Context, id int64, patch portfolio.Draft) (E, error)
	Delete(ctx context.Context, id int64) error
}

// EntityHandler serves JSON CRUD for one entity. D is the create payload
// and P the update payload.
type EntityHandler[E any, D, P portfolio.Draft] struct {
	service  CRUD[E]
	notifier portfolio.Notifier
}

func NewEntityHandler[E any, D, P portfolio.Draft](service CRUD[E], notifier portfolio.Notifier) *EntityHandler[E, D, P] {
	if notifier == nil {
		notifier = portfolio.NopNotifier{}
	}
	return &EntityHandler[E, D, P]{service: service, notifier: notifier}
}

// Routes returns the routes for the entity
func (h *EntityHandler[E, D, P]) Routes() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

// Mount registers the CRUD routes on r.
func (h *EntityHandler[E, D, P]) Mount(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *EntityHandler[E, D, P]) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rows)
}

func (h *EntityHandler[E, D, P]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	row, err := h.service.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, row)
}

func (h *EntityHandler[E, D, P]) Create(w http.ResponseWriter, r *http.Request) {
	var draft D
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	row, err := h.service.Create(r.Context(), draft)
	if err != nil {
		failed(w, r, h.notifier, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, row)
}

func (h *EntityHandler[E, D, P]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch P
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	row, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		failed(w, r, h.notifier, err)
		return
	}
	render.JSON(w, r, row)
}

func (h *EntityHandler[E, D, P]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		failed(w, r, h.notifier, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, r, "invalid id: "+raw)
		return 0, false
	}
	return id, true
}
