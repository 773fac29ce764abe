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

type relationshipService interface {
	CreateCircle(ctx context.Context, principal application.Principal, params application.CircleParams) (persistence.Circle, error)
	GetCircle(ctx context.Context, principal application.Principal, circleID string) (persistence.Circle, []persistence.CircleMember, error)
	UpdateCircle(ctx context.Context, principal application.Principal, circleID string, params application.CircleParams) (persistence.Circle, error)
	DeleteCircle(ctx context.Context, principal application.Principal, circleID string) error
	JoinCircle(ctx context.Context, principal application.Principal, circleID string) error
	RequestFriend(ctx context.Context, principal application.Principal, friendID string) (persistence.Friend, error)
	RespondFriend(ctx context.Context, principal application.Principal, edgeID, status string) (persistence.Friend, error)
	ListFriends(ctx context.Context, principal application.Principal, status, direction string) ([]persistence.Friend, error)
	ListActivities(ctx context.Context, principal application.Principal) ([]persistence.Activity, error)
}

// SocialHandler serves the circle, friend, and activity surfaces.
type SocialHandler struct {
	service   relationshipService
	responder responder
}

func NewSocialHandler(service relationshipService, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{service: service, responder: newResponder(logger)}
}

func (h *SocialHandler) CreateCircle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req circleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	circle, err := h.service.CreateCircle(r.Context(), principal, application.CircleParams{Name: req.Name})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, circleResponse{Circle: toCircleDTO(circle, nil)})
}

func (h *SocialHandler) GetCircle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	circleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(circleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	circle, members, err := h.service.GetCircle(r.Context(), principal, circleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, circleResponse{Circle: toCircleDTO(circle, members)})
}

func (h *SocialHandler) UpdateCircle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	circleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(circleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req circleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	circle, err := h.service.UpdateCircle(r.Context(), principal, circleID, application.CircleParams{Name: req.Name})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, circleResponse{Circle: toCircleDTO(circle, nil)})
}

func (h *SocialHandler) DeleteCircle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	circleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(circleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteCircle(r.Context(), principal, circleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SocialHandler) JoinCircle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	circleID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(circleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.JoinCircle(r.Context(), principal, circleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, struct{}{})
}

func (h *SocialHandler) RequestFriend(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	friend, err := h.service.RequestFriend(r.Context(), principal, strings.TrimSpace(req.FriendID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, friendResponse{Friend: toFriendDTO(friend)})
}

func (h *SocialHandler) RespondFriend(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	edgeID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(edgeID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	var req friendStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	friend, err := h.service.RespondFriend(r.Context(), principal, edgeID, strings.TrimSpace(req.Status))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, friendResponse{Friend: toFriendDTO(friend)})
}

func (h *SocialHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	principal, _ := PrincipalFromContext(r.Context())
	friends, err := h.service.ListFriends(r.Context(), principal,
		strings.TrimSpace(query.Get("status")),
		strings.TrimSpace(query.Get("direction")),
	)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]friendDTO, 0, len(friends))
	for _, friend := range friends {
		out = append(out, toFriendDTO(friend))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listFriendsResponse{Friends: out})
}

func (h *SocialHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	activities, err := h.service.ListActivities(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]activityDTO, 0, len(activities))
	for _, activity := range activities {
		out = append(out, activityDTO{
			ID:        activity.ID,
			CircleID:  activity.CircleID,
			Kind:      activity.Kind,
			CreatedAt: activity.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listActivitiesResponse{Activities: out})
}

type circleRequest struct {
	Name string `json:"name"`
}

type friendRequest struct {
	FriendID string `json:"friend_id"`
}

type friendStatusRequest struct {
	Status string `json:"status"`
}

type circleResponse struct {
	Circle circleDTO `json:"circle"`
}

type friendResponse struct {
	Friend friendDTO `json:"friend"`
}

type listFriendsResponse struct {
	Friends []friendDTO `json:"friends"`
}

type listActivitiesResponse struct {
	Activities []activityDTO `json:"activities"`
}

type circleDTO struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedBy string            `json:"created_by"`
	Members   []circleMemberDTO `json:"members,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type circleMemberDTO struct {
	UserID   string `json:"user_id"`
	JoinedAt string `json:"joined_at"`
}

type friendDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	FriendID  string `json:"friend_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type activityDTO struct {
	ID        string  `json:"id"`
	CircleID  *string `json:"circle_id,omitempty"`
	Kind      string  `json:"kind"`
	CreatedAt string  `json:"created_at"`
}

func toCircleDTO(circle persistence.Circle, members []persistence.CircleMember) circleDTO {
	dto := circleDTO{
		ID:        circle.ID,
		Name:      circle.Name,
		CreatedBy: circle.CreatedBy,
		CreatedAt: circle.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: circle.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, member := range members {
		dto.Members = append(dto.Members, circleMemberDTO{
			UserID:   member.UserID,
			JoinedAt: member.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	return dto
}

func toFriendDTO(friend persistence.Friend) friendDTO {
	return friendDTO{
		ID:        friend.ID,
		UserID:    friend.UserID,
		FriendID:  friend.FriendID,
		Status:    friend.Status,
		CreatedAt: friend.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: friend.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
