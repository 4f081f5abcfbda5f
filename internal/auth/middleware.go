package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/atrium-pm/atrium/internal/shared"
)

// Middleware resolves the session user into an Actor and gates routes by role.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireRole ensures the current user holds at least the given role and
// stores the resolved actor in the request context.
func (m Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			user, err := m.Service.UserByID(r.Context(), userID)
			if err != nil || !user.IsActive {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			actor := shared.Actor{ID: user.ID, Role: user.Role}
			if !actor.HasRole(role) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("auth parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
