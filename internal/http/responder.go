package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/focusguard/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is malformed")
	errInvalidResourceID   = errors.New("resource id is missing or invalid")
	errMissingSessionToken = errors.New("authentication token is required")
)

// errorResponse is the uniform error body. Field level details ride along
// for validation failures; nothing internal leaks.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Error: message})
}

// handleServiceError translates service errors into the HTTP taxonomy:
// validation 400, conflicts 400, missing references 404, authorization 403,
// authentication 401, unimplemented surfaces 501, everything else a
// generic 500.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: statusMessage(http.StatusInternalServerError)})
		return
	}

	logger := r.loggerFor(ctx)

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		logger.WarnContext(ctx, "request failed validation", "fields", vErr.FieldErrors)
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Fields: vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "resource not found"})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Error: "not allowed"})
	case errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrSessionExpired),
		errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "resource already exists"})
	case errors.Is(err, application.ErrDuplicateRequest):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "friend request already pending"})
	case errors.Is(err, application.ErrAlreadyFriends):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "already friends"})
	case errors.Is(err, application.ErrBlocked):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "relationship is blocked"})
	case errors.Is(err, application.ErrNotImplemented):
		r.writeJSON(ctx, w, http.StatusNotImplemented, errorResponse{Error: "not implemented"})
	default:
		logger.ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "request is invalid"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "not allowed"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusNotImplemented:
		return "not implemented"
	default:
		return "internal server error"
	}
}
