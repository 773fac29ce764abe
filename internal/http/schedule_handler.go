package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
)

type scheduleService interface {
	CreateSchedule(ctx context.Context, principal application.Principal, params application.ScheduleParams) (persistence.AppSchedule, error)
	UpdateSchedule(ctx context.Context, principal application.Principal, scheduleID string, params application.ScheduleParams) (persistence.AppSchedule, error)
	DeleteSchedule(ctx context.Context, principal application.Principal, scheduleID string) error
	ListSchedules(ctx context.Context, principal application.Principal) ([]persistence.AppSchedule, error)
}

// ScheduleHandler serves the app blocking schedule surface.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	schedule, err := h.service.CreateSchedule(r.Context(), principal, req.toParams())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, scheduleResponse{AppSchedule: toScheduleDTO(schedule)})
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	schedule, err := h.service.UpdateSchedule(r.Context(), principal, scheduleID, req.toParams())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, scheduleResponse{AppSchedule: toScheduleDTO(schedule)})
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteSchedule(r.Context(), principal, scheduleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, struct{}{})
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	schedules, err := h.service.ListSchedules(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]scheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, toScheduleDTO(schedule))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{AppSchedules: out})
}

type scheduleRequest struct {
	AppID      string `json:"app_id"`
	DaysOfWeek []int  `json:"days_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	IsActive   *bool  `json:"is_active"`
}

func (r scheduleRequest) toParams() application.ScheduleParams {
	return application.ScheduleParams{
		AppID:      strings.TrimSpace(r.AppID),
		DaysOfWeek: r.DaysOfWeek,
		StartTime:  strings.TrimSpace(r.StartTime),
		EndTime:    strings.TrimSpace(r.EndTime),
		IsActive:   r.IsActive,
	}
}

type scheduleResponse struct {
	AppSchedule scheduleDTO `json:"app_schedule"`
}

type listSchedulesResponse struct {
	AppSchedules []scheduleDTO `json:"app_schedules"`
}

type scheduleDTO struct {
	ID         string `json:"id"`
	AppID      string `json:"app_id"`
	DaysOfWeek []int  `json:"days_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toScheduleDTO(schedule persistence.AppSchedule) scheduleDTO {
	return scheduleDTO{
		ID:         schedule.ID,
		AppID:      schedule.AppID,
		DaysOfWeek: append([]int(nil), schedule.DaysOfWeek...),
		StartTime:  schedule.StartTime,
		EndTime:    schedule.EndTime,
		IsActive:   schedule.IsActive,
		CreatedAt:  schedule.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  schedule.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
