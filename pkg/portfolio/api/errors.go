package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	"github.com/tendant/portfolio-admin/pkg/portfolio/auth"
	"github.com/tendant/portfolio-admin/pkg/portfolio/reconcile"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Detail string   `json:"detail"`
	Fields []string `json:"fields,omitempty"`
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	var qe *portfolio.RemoteQueryError
	var be *portfolio.BlobStoreError
	switch {
	case portfolio.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &qe):
		switch qe.Kind {
		case portfolio.KindNoRows:
			return http.StatusNotFound
		case portfolio.KindConflict:
			return http.StatusConflict
		case portfolio.KindInvalid:
			return http.StatusBadRequest
		case portfolio.KindUnavailable:
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case errors.As(err, &be):
		switch {
		case errors.Is(err, portfolio.ErrObjectNotFound):
			return http.StatusNotFound
		case errors.Is(err, portfolio.ErrObjectExists):
			return http.StatusConflict
		}
		return http.StatusBadGateway
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrSweepInProgress):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	resp := ErrorResponse{Error: http.StatusText(status), Detail: err.Error()}
	var ve *portfolio.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: http.StatusText(http.StatusBadRequest), Detail: detail})
}

// failed renders err and forwards it to the notifier. List failures are
// reported by the services themselves and go through renderError only.
func failed(w http.ResponseWriter, r *http.Request, n portfolio.Notifier, err error) {
	if nerr := n.Notify(r.Context(), portfolio.NewNotification(portfolio.KindError, "Error", err.Error())); nerr != nil {
		slog.Warn("Failed to deliver notification", "error", nerr)
	}
	renderError(w, r, err)
}
