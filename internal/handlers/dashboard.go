// internal/handlers/dashboard.go
package handlers

import (
	"log/slog"
	"net/http"

	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
)

// DashboardStatsHandler aggregates the buyer's dashboard numbers.
// GET /api/dashboard/stats
func DashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	if !user.IsBuyer() {
		writeError(w, http.StatusForbidden, "Dashboard statistics are available to buyers only.")
		return
	}

	stats, err := db.GetDashboardStats(user.ID)
	if err != nil {
		slog.Error("Failed to load dashboard stats", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load dashboard statistics.")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
