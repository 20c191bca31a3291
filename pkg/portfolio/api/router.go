// Package api exposes the portfolio services over HTTP with chi.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	"github.com/tendant/portfolio-admin/pkg/portfolio/auth"
	"github.com/tendant/portfolio-admin/pkg/portfolio/notify"
	"github.com/tendant/portfolio-admin/pkg/portfolio/reconcile"
)

// Services are the wired services the router serves.
type Services struct {
	Profiles       *portfolio.ProfileService
	Projects       *portfolio.ProjectService
	Experiences    *portfolio.ExperienceService
	Technologies   *portfolio.TechnologyService
	SocialNetworks *portfolio.SocialNetworkService
	Images         *portfolio.ImageService
	Sweeper        *reconcile.Sweeper
	Auth           *auth.Service
	Notifier       portfolio.Notifier
	// Feed backs GET /notifications. Optional.
	Feed notify.Reader
}

// RouterConfig holds the HTTP-only settings.
type RouterConfig struct {
	Guard        auth.GuardConfig
	SecureCookie bool
	// AllowSignUp mounts POST /auth/sign-up. Without it accounts can only be
	// created through auth.Service.
	AllowSignUp bool
	// PublicAPIKeys maps key names to SHA-256 hashes of the keys allowed on
	// /public/v1. The public API is not mounted when empty.
	PublicAPIKeys map[string]string
}

// Mount registers every portfolio route on r.
func Mount(r chi.Router, s Services, cfg RouterConfig) error {
	notifier := s.Notifier
	if notifier == nil {
		notifier = portfolio.NopNotifier{}
	}

	authHandler := NewAuthHandler(s.Auth, cfg.Guard)
	authHandler.SecureCookie = cfg.SecureCookie
	authHandler.AllowSignUp = cfg.AllowSignUp
	r.Mount("/auth", authHandler.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.Auth.RequireSession(cfg.Guard))

		r.Mount("/profiles", NewEntityHandler[portfolio.Profile, portfolio.ProfileDraft, portfolio.ProfilePatch](s.Profiles, notifier).Routes())
		r.Mount("/projects", NewEntityHandler[portfolio.Project, portfolio.ProjectDraft, portfolio.ProjectPatch](s.Projects, notifier).Routes())
		r.Mount("/experiences", NewEntityHandler[portfolio.Experience, portfolio.ExperienceDraft, portfolio.ExperiencePatch](s.Experiences, notifier).Routes())
		r.Route("/technologies", func(r chi.Router) {
			r.Get("/skills", skillsHandler(s.Technologies))
			NewEntityHandler[portfolio.Technology, portfolio.TechnologyDraft, portfolio.TechnologyPatch](s.Technologies, notifier).Mount(r)
		})
		r.Mount("/social-networks", NewEntityHandler[portfolio.SocialNetwork, portfolio.SocialNetworkDraft, portfolio.SocialNetworkPatch](s.SocialNetworks, notifier).Routes())
		r.Mount("/images", NewImageHandler(s.Images, s.Sweeper, notifier).Routes())
		r.Get("/notifications", notificationsHandler(s.Feed))
	})

	if len(cfg.PublicAPIKeys) > 0 {
		apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{APIKeys: cfg.PublicAPIKeys})
		if err != nil {
			return fmt.Errorf("failed to initialize API key middleware: %w", err)
		}
		r.With(apiKeyMiddleware).Mount("/public/v1", NewPublicHandler(s).Routes())
	}

	r.Mount("/storage", NewStorageHandler(s.Images.Blobs()).Routes())
	return nil
}

func skillsHandler(technologies *portfolio.TechnologyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skills, err := technologies.Skills(r.Context())
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, skills)
	}
}

// notificationsHandler returns the most recent notifications, newest first.
// The limit query parameter caps the count.
func notificationsHandler(feed notify.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			render.JSON(w, r, []portfolio.Notification{})
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				badRequest(w, r, "invalid limit: "+raw)
				return
			}
			limit = n
		}
		items, err := feed.Recent(r.Context(), limit)
		if err != nil {
			renderError(w, r, err)
			return
		}
		if items == nil {
			items = []portfolio.Notification{}
		}
		render.JSON(w, r, items)
	}
}
