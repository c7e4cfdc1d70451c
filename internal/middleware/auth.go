package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"buildbidz.in/internal/db"
	"buildbidz.in/internal/models"

	"github.com/alexedwards/scs/v2"
)

type contextKey string

const UserIDContextKey contextKey = "userID"
const IsAuthenticatedContextKey contextKey = "isAuthenticated"
const UserContextKey contextKey = "user"

// RequireAuthentication rejects requests without an authenticated session
// and loads the session user into the request context so protected
// handlers never hit the database for it again.
func RequireAuthentication(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sessionManager.GetString(r.Context(), string(UserIDContextKey))
			if userID == "" {
				slog.Warn("Access denied: user not authenticated", "path", r.URL.Path)
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			user, err := db.GetUserByID(userID)
			if err != nil || user == nil {
				slog.Error("RequireAuthentication: user not found or DB error", "user_id", userID, "error", err)
				sessionManager.Remove(r.Context(), string(UserIDContextKey))
				http.Error(w, `{"error":"session invalid"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			ctx = context.WithValue(ctx, UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InjectUserData exposes authentication state to handlers that serve both
// anonymous and logged-in users.
func InjectUserData(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			isAuthenticated := false

			if userFromAuth, ok := ctx.Value(UserContextKey).(*models.User); ok && userFromAuth != nil {
				isAuthenticated = true
			} else {
				sessionUserID := sessionManager.GetString(ctx, string(UserIDContextKey))
				if sessionUserID != "" {
					userFromDB, err := db.GetUserByID(sessionUserID)
					if err == nil && userFromDB != nil {
						isAuthenticated = true
						ctx = context.WithValue(ctx, UserContextKey, userFromDB)
						ctx = context.WithValue(ctx, UserIDContextKey, sessionUserID)
					} else if err != nil {
						slog.Warn("InjectUserData: error fetching user from session ID", "user_id", sessionUserID, "error", err)
					}
				}
			}

			ctx = context.WithValue(ctx, IsAuthenticatedContextKey, isAuthenticated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser extracts the authenticated user placed in the context by
// RequireAuthentication. Returns nil when the request is anonymous.
func CurrentUser(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
