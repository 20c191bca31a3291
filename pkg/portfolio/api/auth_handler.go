package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/portfolio-admin/pkg/portfolio/auth"
)

// Credentials is the body of sign-up and sign-in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	auth  *auth.Service
	guard auth.GuardConfig
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// AllowSignUp registers POST /sign-up.
	AllowSignUp bool
}

// NewAuthHandler creates an AuthHandler; sign-up stays closed until AllowSignUp is set.
func NewAuthHandler(service *auth.Service, guard auth.GuardConfig) *AuthHandler {
	return &AuthHandler{auth: service, guard: guard}
}

// Routes returns the routes for authentication
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireNoSession(h.guard))
		if h.AllowSignUp {
			r.Post("/sign-up", h.SignUp)
		}
		r.Post("/sign-in", h.SignIn)
	})
	r.Post("/sign-out", h.SignOut)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireSession(h.guard))
		r.Get("/session", h.Session)
	})
	return r
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	session, err := h.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}
	h.setCookie(w, session)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, session)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	session, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}
	h.setCookie(w, session)
	render.JSON(w, r, session)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), auth.TokenFromRequest(r)); err != nil {
		renderError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the session RequireSession attached to the request.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.FromContext(r.Context())
	if !ok {
		renderError(w, r, auth.ErrNoSession)
		return
	}
	render.JSON(w, r, session)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
