// internal/handlers/payments.go
package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"buildbidz.in/internal/config"
	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/payment_gateway/razorpay"
	"buildbidz.in/internal/payments"
	"buildbidz.in/internal/validation"

	"github.com/shopspring/decimal"
)

type PaymentHandlers struct {
	Service   *payments.Service
	Store     *db.PaymentStore
	AppConfig *config.Config
}

func NewPaymentHandlers(service *payments.Service, store *db.PaymentStore, cfg *config.Config) *PaymentHandlers {
	return &PaymentHandlers{
		Service:   service,
		Store:     store,
		AppConfig: cfg,
	}
}

// CreateOrderHandler registers a payment order for a bid.
// POST /api/payments/create-order
func (h *PaymentHandlers) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var form models.CreateOrderForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	amount, err := decimal.NewFromString(form.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount.")
		return
	}

	result, err := h.Service.CreateOrder(r.Context(), user, form.BidID, form.ProjectID, amount, form.Currency, models.PaymentType(form.Type))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// VerifyHandler consumes the checkout confirmation the gateway hands back to
// the payer's browser. POST /api/payments/verify
func (h *PaymentHandlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var form models.VerifyPaymentForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	result, err := h.Service.VerifyClientConfirmation(r.Context(), user, form.GatewayOrderID, form.GatewayPaymentID, form.Signature)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// WebhookHandler receives gateway webhook deliveries. The raw body bytes are
// captured before any parsing because the signature covers them exactly.
// Registered outside the session and CSRF middleware.
// POST /api/payments/webhook
func (h *PaymentHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		slog.Warn("Failed to read webhook body", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to read request body.")
		return
	}

	signature := r.Header.Get(razorpay.SignatureHeader)
	outcome, err := h.Service.HandleWebhook(r.Context(), rawBody, signature)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

// ListPaymentsHandler returns the caller's payments, as payer or payee.
// GET /api/payments
func (h *PaymentHandlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	list, err := h.Store.ListPaymentsForUser(r.Context(), user.ID, 50)
	if err != nil {
		slog.Error("Failed to list payments", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list payments.")
		return
	}

	summaries := make([]models.PaymentSummary, 0, len(list))
	for i := range list {
		summaries = append(summaries, list[i].Summary(user.ID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": summaries})
}

// PaymentDetailHandler returns one payment visible to its payer or payee.
// The audit trail is included for the payer only. GET /api/payments/detail?id=...
func (h *PaymentHandlers) PaymentDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
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
		writeError(w, http.StatusBadRequest, "Missing payment id.")
		return
	}

	payment, err := h.Store.GetPaymentByID(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load payment", "payment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load payment.")
		return
	}
	if payment == nil {
		writeError(w, http.StatusNotFound, "Payment not found.")
		return
	}
	if payment.PayerID != user.ID && payment.PayeeID != user.ID {
		// Same body as not-found so outsiders cannot probe for payment IDs.
		writeError(w, http.StatusNotFound, "Payment not found.")
		return
	}

	writeJSON(w, http.StatusOK, payment.Summary(user.ID))
}
