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

type appCatalogService interface {
	ListApps(ctx context.Context) ([]persistence.TrackedApp, error)
	LinkApp(ctx context.Context, principal application.Principal, params application.LinkAppParams) (persistence.UserAppLink, error)
	UpdateLink(ctx context.Context, principal application.Principal, params application.UpdateLinkParams) (persistence.UserAppLink, error)
	ListLinks(ctx context.Context, principal application.Principal) ([]persistence.UserAppLink, error)
}

// AppsHandler serves the catalog and user-app link surfaces.
type AppsHandler struct {
	service   appCatalogService
	responder responder
}

func NewAppsHandler(service appCatalogService, logger *slog.Logger) *AppsHandler {
	return &AppsHandler{service: service, responder: newResponder(logger)}
}

func (h *AppsHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	apps, err := h.service.ListApps(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]appDTO, 0, len(apps))
	for _, app := range apps {
		out = append(out, appDTO{ID: app.ID, Name: app.Name, Category: app.Category})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAppsResponse{Apps: out})
}

func (h *AppsHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	links, err := h.service.ListLinks(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]userAppDTO, 0, len(links))
	for _, link := range links {
		out = append(out, toUserAppDTO(link))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUserAppsResponse{UserApps: out})
}

func (h *AppsHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req userAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	link, err := h.service.LinkApp(r.Context(), principal, application.LinkAppParams{
		AppID:     strings.TrimSpace(req.AppID),
		IsTracked: req.IsTracked,
		IsBlocked: req.IsBlocked,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userAppResponse{UserApp: toUserAppDTO(link)})
}

func (h *AppsHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	linkID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(linkID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req userAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	link, err := h.service.UpdateLink(r.Context(), principal, application.UpdateLinkParams{
		LinkID:    linkID,
		IsTracked: req.IsTracked,
		IsBlocked: req.IsBlocked,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userAppResponse{UserApp: toUserAppDTO(link)})
}

type userAppRequest struct {
	AppID     string `json:"app_id"`
	IsTracked *bool  `json:"is_tracked"`
	IsBlocked *bool  `json:"is_blocked"`
}

type listAppsResponse struct {
	Apps []appDTO `json:"apps"`
}

type listUserAppsResponse struct {
	UserApps []userAppDTO `json:"user_apps"`
}

type userAppResponse struct {
	UserApp userAppDTO `json:"user_app"`
}

type appDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type userAppDTO struct {
	ID        string `json:"id"`
	AppID     string `json:"app_id"`
	IsTracked bool   `json:"is_tracked"`
	IsBlocked bool   `json:"is_blocked"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserAppDTO(link persistence.UserAppLink) userAppDTO {
	return userAppDTO{
		ID:        link.ID,
		AppID:     link.AppID,
		IsTracked: link.IsTracked,
		IsBlocked: link.IsBlocked,
		CreatedAt: link.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: link.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
