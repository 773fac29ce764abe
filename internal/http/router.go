package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires handlers and middleware into the route table.
type RouterConfig struct {
	Auth       *AuthHandler
	Apps       *AppsHandler
	Schedules  *ScheduleHandler
	Focus      *FocusHandler
	Usage      *UsageHandler
	Social     *SocialHandler
	Middleware []func(http.Handler) http.Handler
}

// PublicPath reports whether a request may pass without authentication.
// Only registration and login are open.
func PublicPath(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	return r.URL.Path == "/auth/register" || r.URL.Path == "/auth/login"
}

// NewRouter builds the HTTP route table and wraps it in the configured
// middleware, outermost first.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Register(w, r)
		})
		mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.Logout(w, r)
		})
		mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Auth.Profile(w, r)
		})
	}

	if cfg.Apps != nil {
		mux.HandleFunc("/apps", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Apps.ListApps(w, r)
		})
		mux.HandleFunc("/user-apps", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Apps.ListLinks(w, r)
			case http.MethodPost:
				cfg.Apps.CreateLink(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/user-apps/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/user-apps/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			if r.Method != http.MethodPatch {
				methodNotAllowed(w, http.MethodPatch)
				return
			}
			cfg.Apps.UpdateLink(w, r)
		})
	}

	if cfg.Schedules != nil {
		mux.HandleFunc("/app-schedules", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Schedules.List(w, r)
			case http.MethodPost:
				cfg.Schedules.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/app-schedules/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/app-schedules/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			switch r.Method {
			case http.MethodPatch:
				cfg.Schedules.Update(w, r)
			case http.MethodDelete:
				cfg.Schedules.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPatch, http.MethodDelete)
			}
		})
	}

	if cfg.Focus != nil {
		mux.HandleFunc("/focus-sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Focus.Start(w, r)
		})
		mux.HandleFunc("/focus-sessions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/focus-sessions/")
			switch rest {
			case "":
				http.NotFound(w, r)
			case "active":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Focus.Active(w, r)
			case "active/break":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Focus.UseBreak(w, r)
			case "active/end":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Focus.End(w, r)
			default:
				r = r.WithContext(ContextWithResourceID(r.Context(), rest))
				if r.Method != http.MethodPatch {
					methodNotAllowed(w, http.MethodPatch)
					return
				}
				cfg.Focus.Update(w, r)
			}
		})
	}

	if cfg.Usage != nil {
		mux.HandleFunc("/app-usage", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Usage.List(w, r)
			case http.MethodPost:
				cfg.Usage.Record(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Social != nil {
		mux.HandleFunc("/circles", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Social.CreateCircle(w, r)
		})
		mux.HandleFunc("/circles/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/circles/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			if id, ok := strings.CutSuffix(rest, "/members"); ok && id != "" {
				r = r.WithContext(ContextWithResourceID(r.Context(), id))
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Social.JoinCircle(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), rest))
			switch r.Method {
			case http.MethodGet:
				cfg.Social.GetCircle(w, r)
			case http.MethodPatch:
				cfg.Social.UpdateCircle(w, r)
			case http.MethodDelete:
				cfg.Social.DeleteCircle(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
			}
		})

		mux.HandleFunc("/friends", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Social.ListFriends(w, r)
			case http.MethodPost:
				cfg.Social.RequestFriend(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/friends/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/friends/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			if r.Method != http.MethodPatch {
				methodNotAllowed(w, http.MethodPatch)
				return
			}
			cfg.Social.RespondFriend(w, r)
		})

		mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Social.ListActivities(w, r)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
