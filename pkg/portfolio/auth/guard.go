package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
)

// CookieName is the cookie jwtauth.TokenFromCookie reads.
const CookieName = "jwt"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying session.
func NewContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, session)
}

// FromContext returns the session stored by RequireSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// TokenFromRequest returns the bearer token or the session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := jwtauth.TokenFromHeader(r); token != "" {
		return token
	}
	return jwtauth.TokenFromCookie(r)
}

// GuardConfig sets where the guards redirect browsers.
type GuardConfig struct {
	LoginPath string // unauthenticated browsers are sent here
	AdminPath string // authenticated browsers leaving the login area are sent here
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.LoginPath == "" {
		c.LoginPath = "/auth/sign-in"
	}
	if c.AdminPath == "" {
		c.AdminPath = "/auth/session"
	}
	return c
}

// RequireSession lets a request through only with a live session. Browsers
// are redirected to the login path; API clients get 401.
func (s *Service) RequireSession(cfg GuardConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		authenticate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				s.reject(w, r, cfg)
				return
			}
			sid, _ := claims["sid"].(string)
			if sid == "" {
				s.reject(w, r, cfg)
				return
			}
			session, err := s.lookup(r.Context(), sid, TokenFromRequest(r))
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					s.logger.Error("Failed to look up session", "error", err)
				}
				s.reject(w, r, cfg)
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), session)))
		})
		return jwtauth.Verify(s.ta, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)(authenticate)
	}
}

// RequireNoSession sends requests that already carry a live session to the
// admin path and lets everything else through.
func (s *Service) RequireNoSession(cfg GuardConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session, err := s.GetSession(r.Context(), TokenFromRequest(r)); err == nil && session != nil {
				http.Redirect(w, r, cfg.AdminPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Service) reject(w http.ResponseWriter, r *http.Request, cfg GuardConfig) {
	if wantsHTML(r) {
		http.Redirect(w, r, cfg.LoginPath, http.StatusFound)
		return
	}
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": "unauthorized", "detail": ErrNoSession.Error()})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
