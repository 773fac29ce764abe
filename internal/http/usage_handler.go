package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
)

type usageService interface {
	RecordUsage(ctx context.Context, principal application.Principal, params application.RecordUsageParams) (persistence.AppUsageRecord, error)
	ListUsage(ctx context.Context, principal application.Principal, params application.ListUsageParams) ([]persistence.AppUsageRecord, error)
}

// UsageHandler serves the app-usage reporting surface.
type UsageHandler struct {
	service   usageService
	responder responder
}

func NewUsageHandler(service usageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{service: service, responder: newResponder(logger)}
}

func (h *UsageHandler) Record(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.RecordUsage(r.Context(), principal, application.RecordUsageParams{
		AppID:           strings.TrimSpace(req.AppID),
		Date:            strings.TrimSpace(req.Date),
		DurationMinutes: req.DurationMinutes,
		SessionsCount:   req.SessionsCount,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, usageResponse{Usage: toUsageDTO(record)})
}

func (h *UsageHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	params := application.ListUsageParams{
		AppID:     strings.TrimSpace(query.Get("app_id")),
		Date:      strings.TrimSpace(query.Get("date")),
		StartDate: strings.TrimSpace(query.Get("start_date")),
		EndDate:   strings.TrimSpace(query.Get("end_date")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		params.Limit = limit
	}

	principal, _ := PrincipalFromContext(r.Context())
	records, err := h.service.ListUsage(r.Context(), principal, params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]usageDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toUsageDTO(record))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsageResponse{Usage: out})
}

type usageRequest struct {
	AppID           string `json:"app_id"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	SessionsCount   int    `json:"sessions_count"`
}

type usageResponse struct {
	Usage usageDTO `json:"usage"`
}

type listUsageResponse struct {
	Usage []usageDTO `json:"usage"`
}

type usageDTO struct {
	AppID           string `json:"app_id"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	SessionsCount   int    `json:"sessions_count"`
	UpdatedAt       string `json:"updated_at"`
}

func toUsageDTO(record persistence.AppUsageRecord) usageDTO {
	return usageDTO{
		AppID:           record.AppID,
		Date:            record.Date,
		DurationMinutes: record.DurationMinutes,
		SessionsCount:   record.SessionsCount,
		UpdatedAt:       record.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
