// internal/middleware/roles.go
package middleware

import (
	"log/slog"
	"net/http"
)

// RequireRole allows the request through only when the authenticated user
// holds one of the given roles. Must run after RequireAuthentication.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			if !allowed[user.Role] {
				slog.Warn("Access denied: insufficient role", "user_id", user.ID, "role", user.Role, "path", r.URL.Path)
				http.Error(w, `{"error":"insufficient permissions"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
