package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/portfolio-admin/pkg/portfolio/config"
)

func newTestHandler(t *testing.T, opts ...config.Option) http.Handler {
	t.Helper()
	cfg, err := config.Load(append([]config.Option{config.WithStore("memory", "secret")}, opts...)...)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	rt, err := cfg.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	handler, err := routes(rt)
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	return handler
}

func serve(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("json encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoutes_AdminRequiresSession(t *testing.T) {
	h := newTestHandler(t)

	rr := serve(t, h, http.MethodGet, "/api/v1/technologies", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRoutes_SignUpClosedByDefault(t *testing.T) {
	h := newTestHandler(t)

	rr := serve(t, h, http.MethodPost, "/auth/sign-up", map[string]string{"email": "admin@example.com", "password": "secret123"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRoutes_SignUpThenAdmin(t *testing.T) {
	h := newTestHandler(t, config.WithSignUp(true))

	rr := serve(t, h, http.MethodPost, "/auth/sign-up", map[string]string{"email": "admin@example.com", "password": "secret123"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/technologies", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRoutes_Storage(t *testing.T) {
	h := newTestHandler(t)

	rr := serve(t, h, http.MethodGet, "/storage/images/missing.png", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}
