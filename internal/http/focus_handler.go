package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/focusguard/internal/application"
)

type sessionEngine interface {
	StartSession(ctx context.Context, principal application.Principal, params application.StartSessionParams) (application.FocusSessionView, error)
	GetActiveSession(ctx context.Context, principal application.Principal) (application.FocusSessionView, error)
	UseBreak(ctx context.Context, principal application.Principal) (application.FocusSessionView, error)
	EndSession(ctx context.Context, principal application.Principal, params application.EndSessionParams) (application.FocusSessionView, error)
	UpdateSession(ctx context.Context, principal application.Principal, sessionID string) error
}

// FocusHandler serves the focus-session surface.
type FocusHandler struct {
	service   sessionEngine
	responder responder
}

func NewFocusHandler(service sessionEngine, logger *slog.Logger) *FocusHandler {
	return &FocusHandler{service: service, responder: newResponder(logger)}
}

func (h *FocusHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.StartSession(r.Context(), principal, application.StartSessionParams{
		AppIDs:            req.AppIDs,
		ScheduledDuration: req.ScheduledDuration,
		BreaksAllowed:     req.BreaksAllowed,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(view)})
}

func (h *FocusHandler) Active(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.GetActiveSession(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(view)})
}

func (h *FocusHandler) UseBreak(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.UseBreak(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(view)})
}

func (h *FocusHandler) End(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.EndSession(r.Context(), principal, application.EndSessionParams{
		SessionID: strings.TrimSpace(req.SessionID),
		Status:    strings.TrimSpace(req.Status),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(view)})
}

// Update covers PATCH on a session row. The mutation surface is declared
// but unbacked, so the service reports not-implemented and the client
// gets a clean 501 instead of a crash.
func (h *FocusHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.UpdateSession(r.Context(), principal, sessionID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, struct{}{})
}

type startSessionRequest struct {
	AppIDs            []string `json:"app_ids"`
	ScheduledDuration int      `json:"scheduled_duration"`
	BreaksAllowed     *int     `json:"breaks_allowed"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type sessionDTO struct {
	ID                string   `json:"id"`
	StartTime         string   `json:"start_time"`
	EndTime           *string  `json:"end_time,omitempty"`
	ScheduledDuration int      `json:"scheduled_duration"`
	BreaksAllowed     int      `json:"breaks_allowed"`
	BreaksUsed        int      `json:"breaks_used"`
	Status            string   `json:"status"`
	MinutesSaved      int      `json:"minutes_saved"`
	AppIDs            []string `json:"app_ids"`
}

func toSessionDTO(view application.FocusSessionView) sessionDTO {
	dto := sessionDTO{
		ID:                view.Session.ID,
		StartTime:         view.Session.StartTime.UTC().Format(time.RFC3339),
		ScheduledDuration: view.Session.ScheduledDuration,
		BreaksAllowed:     view.Session.BreaksAllowed,
		BreaksUsed:        view.Session.BreaksUsed,
		Status:            view.Session.Status,
		MinutesSaved:      view.MinutesSaved,
		AppIDs:            make([]string, 0, len(view.Apps)),
	}
	if view.Session.EndTime != nil {
		end := view.Session.EndTime.UTC().Format(time.RFC3339)
		dto.EndTime = &end
	}
	for _, app := range view.Apps {
		dto.AppIDs = append(dto.AppIDs, app.AppID)
	}
	return dto
}
