package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

// PublicHandler serves the read-only views the portfolio site renders.
type PublicHandler struct {
	profiles       *portfolio.ProfileService
	projects       *portfolio.ProjectService
	experiences    *portfolio.ExperienceService
	technologies   *portfolio.TechnologyService
	socialNetworks *portfolio.SocialNetworkService
}

func NewPublicHandler(s Services) *PublicHandler {
	return &PublicHandler{
		profiles:       s.Profiles,
		projects:       s.Projects,
		experiences:    s.Experiences,
		technologies:   s.Technologies,
		socialNetworks: s.SocialNetworks,
	}
}

// Routes returns the public read routes
func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/profile", h.Profile)
	r.Get("/projects", h.Projects)
	r.Get("/experiences", h.Experiences)
	r.Get("/skills", h.Skills)
	r.Get("/social-networks", h.SocialNetworks)
	return r
}

// Profile returns the first profile by name.
func (h *PublicHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	if len(profiles) == 0 {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: http.StatusText(http.StatusNotFound), Detail: "no profile"})
		return
	}
	render.JSON(w, r, profiles[0])
}

func (h *PublicHandler) Projects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, projects)
}

func (h *PublicHandler) Experiences(w http.ResponseWriter, r *http.Request) {
	experiences, err := h.experiences.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, experiences)
}

func (h *PublicHandler) Skills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.technologies.Skills(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, skills)
}

func (h *PublicHandler) SocialNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.socialNetworks.Active(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, networks)
}
