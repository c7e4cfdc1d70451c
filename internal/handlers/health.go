// internal/handlers/health.go
package handlers

import (
	"net/http"

	"buildbidz.in/internal/db"
)

// HealthHandler reports process and database liveness. GET /healthz
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	status := "ok"
	code := http.StatusOK
	if db.DB == nil || db.DB.Ping() != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}
