// internal/handlers/bids.go
package handlers

import (
	"log/slog"
	"net/http"

	"buildbidz.in/internal/config"
	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/notify"
	"buildbidz.in/internal/validation"

	"github.com/shopspring/decimal"
)

type BidHandlers struct {
	AppConfig *config.Config
	Notifier  *notify.Hub
}

func NewBidHandlers(cfg *config.Config, hub *notify.Hub) *BidHandlers {
	return &BidHandlers{AppConfig: cfg, Notifier: hub}
}

// BidsHandler dispatches /api/bids: POST places a bid, GET lists bids for a
// project (?project_id=...).
func (h *BidHandlers) BidsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.placeBid(w, r)
	case http.MethodGet:
		h.listBids(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *BidHandlers) placeBid(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	if user.Role != models.RoleSupplier {
		writeError(w, http.StatusForbidden, "Only suppliers can place bids.")
		return
	}

	var form models.PlaceBidForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	project, err := db.GetProjectByID(form.ProjectID)
	if err != nil {
		slog.Error("Failed to load project for bid", "project_id", form.ProjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load project.")
		return
	}
	if project == nil || project.Status == models.ProjectStatusDraft {
		writeError(w, http.StatusNotFound, "Project not found.")
		return
	}
	if project.Status != models.ProjectStatusOpen {
		writeError(w, http.StatusConflict, "Project is not open for bidding.")
		return
	}
	if project.OwnerID == user.ID {
		writeError(w, http.StatusForbidden, "Project owners cannot bid on their own projects.")
		return
	}

	price, err := decimal.NewFromString(form.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bid price.")
		return
	}
	if form.Currency != project.Currency {
		writeError(w, http.StatusConflict, "Bid currency must match the project currency.")
		return
	}

	bid := &models.Bid{
		ProjectID:    form.ProjectID,
		SupplierID:   user.ID,
		Price:        price,
		Currency:     form.Currency,
		DeliveryDays: form.DeliveryDays,
		Status:       models.BidStatusPending,
	}
	if form.Note != "" {
		bid.Note = &form.Note
	}

	if err := db.CreateBid(bid); err != nil {
		slog.Error("Failed to create bid", "project_id", form.ProjectID, "supplier_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to place bid.")
		return
	}

	h.Notifier.Publish("bid.placed", map[string]any{
		"bid_id": bid.ID, "project_id": bid.ProjectID, "supplier_id": user.ID,
	})
	writeJSON(w, http.StatusCreated, bid)
}

func (h *BidHandlers) listBids(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "Missing project_id.")
		return
	}

	bids, err := db.ListBidsByProject(projectID)
	if err != nil {
		slog.Error("Failed to list bids", "project_id", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list bids.")
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

// WithdrawBidHandler lets a supplier withdraw their own pending bid.
// POST /api/bids/withdraw?id=...
func (h *BidHandlers) WithdrawBidHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing bid id.")
		return
	}

	applied, err := db.WithdrawBid(id, user.ID)
	if err != nil {
		slog.Error("Failed to withdraw bid", "bid_id", id, "supplier_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to withdraw bid.")
		return
	}
	if !applied {
		writeError(w, http.StatusConflict, "Bid is not pending or does not belong to you.")
		return
	}

	h.Notifier.Publish("bid.withdrawn", map[string]any{"bid_id": id, "supplier_id": user.ID})
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}
