// internal/middleware/csrf.go
package middleware

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/justinas/nosurf"
)

// NoSurfMiddleware provides CSRF protection for browser-driven routes.
// isProduction enables the Secure cookie flag.
func NoSurfMiddleware(next http.Handler, isProduction bool) http.Handler {
	csrfHandler := nosurf.New(next)

	// nosurf manages its own token key; CSRF_AUTH_KEY being set is a
	// deployment requirement checked here so misconfiguration is loud.
	if os.Getenv("CSRF_AUTH_KEY") == "" {
		if isProduction {
			slog.Error("CRITICAL: CSRF_AUTH_KEY is not set in the production environment")
		} else {
			slog.Warn("CSRF_AUTH_KEY is not set, tokens will not survive restarts")
		}
	}

	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("CSRF token check failed", "path", r.URL.Path, "method", r.Method, "reason", nosurf.Reason(r))
		http.Error(w, `{"error":"invalid or missing CSRF token"}`, http.StatusForbidden)
	}))

	return csrfHandler
}
