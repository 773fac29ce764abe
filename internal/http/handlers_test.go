package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
)

type sessionEngineStub struct {
	view      application.FocusSessionView
	startErr  error
	activeErr error
	endErr    error
}

func (s *sessionEngineStub) StartSession(_ context.Context, _ application.Principal, _ application.StartSessionParams) (application.FocusSessionView, error) {
	return s.view, s.startErr
}

func (s *sessionEngineStub) GetActiveSession(_ context.Context, _ application.Principal) (application.FocusSessionView, error) {
	return s.view, s.activeErr
}

func (s *sessionEngineStub) UseBreak(_ context.Context, _ application.Principal) (application.FocusSessionView, error) {
	return s.view, nil
}

func (s *sessionEngineStub) EndSession(_ context.Context, _ application.Principal, _ application.EndSessionParams) (application.FocusSessionView, error) {
	return s.view, s.endErr
}

func (s *sessionEngineStub) UpdateSession(_ context.Context, _ application.Principal, _ string) error {
	return application.ErrNotImplemented
}

func newFocusRouter(stub *sessionEngineStub) http.Handler {
	return NewRouter(RouterConfig{Focus: NewFocusHandler(stub, nil)})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestFocusRoutes(t *testing.T) {
	t.Parallel()

	view := application.FocusSessionView{
		Session: persistence.FocusSession{
			ID: "session-1", UserID: "user-1",
			StartTime:         time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			ScheduledDuration: 25, BreaksAllowed: 3,
			Status: persistence.SessionStatusActive,
		},
		Apps:         []persistence.SessionApp{{SessionID: "session-1", AppID: "app-1"}},
		MinutesSaved: 4,
	}

	t.Run("start returns 201 with the session", func(t *testing.T) {
		t.Parallel()

		router := newFocusRouter(&sessionEngineStub{view: view})
		req := httptest.NewRequest(http.MethodPost, "/focus-sessions",
			strings.NewReader(`{"scheduled_duration":25,"app_ids":["app-1"]}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		session, ok := body["session"].(map[string]any)
		if !ok {
			t.Fatalf("expected a session object, got %v", body)
		}
		if session["id"] != "session-1" || session["minutes_saved"] != float64(4) {
			t.Fatalf("unexpected session payload: %v", session)
		}
	})

	t.Run("patch on a session id returns a clean 501", func(t *testing.T) {
		t.Parallel()

		router := newFocusRouter(&sessionEngineStub{view: view})
		req := httptest.NewRequest(http.MethodPatch, "/focus-sessions/session-1",
			strings.NewReader(`{"status":"completed"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotImplemented {
			t.Fatalf("expected 501, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != "not implemented" {
			t.Fatalf("expected a not-implemented error body, got %v", body)
		}
	})

	t.Run("missing active session maps to 404", func(t *testing.T) {
		t.Parallel()

		router := newFocusRouter(&sessionEngineStub{activeErr: application.ErrNotFound})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/focus-sessions/active", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] == "" {
			t.Fatalf("expected an error field, got %v", body)
		}
	})

	t.Run("validation failures map to 400 with field details", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{
			"app_ids": "at least one app must be selected",
		}}
		router := newFocusRouter(&sessionEngineStub{startErr: vErr})
		req := httptest.NewRequest(http.MethodPost, "/focus-sessions", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		fields, ok := body["fields"].(map[string]any)
		if !ok || fields["app_ids"] == "" {
			t.Fatalf("expected field details, got %v", body)
		}
	})

	t.Run("malformed JSON maps to 400", func(t *testing.T) {
		t.Parallel()

		router := newFocusRouter(&sessionEngineStub{view: view})
		req := httptest.NewRequest(http.MethodPost, "/focus-sessions", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unexpected failures map to a generic 500", func(t *testing.T) {
		t.Parallel()

		router := newFocusRouter(&sessionEngineStub{startErr: context.DeadlineExceeded})
		req := httptest.NewRequest(http.MethodPost, "/focus-sessions",
			strings.NewReader(`{"scheduled_duration":25,"app_ids":["app-1"]}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if strings.Contains(body["error"].(string), "deadline") {
			t.Fatalf("expected internals not to leak, got %v", body)
		}
	})

	t.Run("unsupported methods return 405", func(t *testing.T) {
		t.Parallel()

		router := newFocusRouter(&sessionEngineStub{view: view})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/focus-sessions", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

type relationshipServiceStub struct {
	friend    persistence.Friend
	friendErr error
}

func (s *relationshipServiceStub) CreateCircle(_ context.Context, _ application.Principal, _ application.CircleParams) (persistence.Circle, error) {
	return persistence.Circle{}, nil
}

func (s *relationshipServiceStub) GetCircle(_ context.Context, _ application.Principal, _ string) (persistence.Circle, []persistence.CircleMember, error) {
	return persistence.Circle{}, nil, nil
}

func (s *relationshipServiceStub) UpdateCircle(_ context.Context, _ application.Principal, _ string, _ application.CircleParams) (persistence.Circle, error) {
	return persistence.Circle{}, nil
}

func (s *relationshipServiceStub) DeleteCircle(_ context.Context, _ application.Principal, _ string) error {
	return nil
}

func (s *relationshipServiceStub) JoinCircle(_ context.Context, _ application.Principal, _ string) error {
	return nil
}

func (s *relationshipServiceStub) RequestFriend(_ context.Context, _ application.Principal, _ string) (persistence.Friend, error) {
	return s.friend, s.friendErr
}

func (s *relationshipServiceStub) RespondFriend(_ context.Context, _ application.Principal, _, _ string) (persistence.Friend, error) {
	return s.friend, s.friendErr
}

func (s *relationshipServiceStub) ListFriends(_ context.Context, _ application.Principal, _, _ string) ([]persistence.Friend, error) {
	return nil, nil
}

func (s *relationshipServiceStub) ListActivities(_ context.Context, _ application.Principal) ([]persistence.Activity, error) {
	return nil, nil
}

func TestFriendRoutes(t *testing.T) {
	t.Parallel()

	t.Run("conflicting requests map to 400", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			err  error
			want string
		}{
			{application.ErrDuplicateRequest, "friend request already pending"},
			{application.ErrAlreadyFriends, "already friends"},
			{application.ErrBlocked, "relationship is blocked"},
		}
		for _, tc := range cases {
			router := NewRouter(RouterConfig{Social: NewSocialHandler(&relationshipServiceStub{friendErr: tc.err}, nil)})
			req := httptest.NewRequest(http.MethodPost, "/friends", strings.NewReader(`{"friend_id":"user-2"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("%v: expected 400, got %d", tc.err, rec.Code)
			}
			body := decodeBody(t, rec)
			if body["error"] != tc.want {
				t.Fatalf("%v: expected %q, got %v", tc.err, tc.want, body)
			}
		}
	})

	t.Run("a created request returns 201 with the edge", func(t *testing.T) {
		t.Parallel()

		stub := &relationshipServiceStub{friend: persistence.Friend{
			ID: "edge-1", UserID: "user-1", FriendID: "user-2",
			Status: persistence.FriendStatusPending,
		}}
		router := NewRouter(RouterConfig{Social: NewSocialHandler(stub, nil)})
		req := httptest.NewRequest(http.MethodPost, "/friends", strings.NewReader(`{"friend_id":"user-2"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		friend, ok := body["friend"].(map[string]any)
		if !ok || friend["status"] != persistence.FriendStatusPending {
			t.Fatalf("unexpected friend payload: %v", body)
		}
	})
}
