// internal/payments/service.go
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"buildbidz.in/internal/models"
	"buildbidz.in/internal/payment_gateway/razorpay"
)

// Store is the persistence contract the payment services need. The SQL
// implementation lives in internal/db; tests may use an in-memory store as
// long as the conditional-update semantics below hold.
type Store interface {
	GetBidByID(ctx context.Context, id string) (*models.Bid, error)
	GetProjectByID(ctx context.Context, id string) (*models.Project, error)
	GetPaymentByOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	// GetActivePaymentByBidID returns the payment for the bid whose status is
	// not "failed", or nil.
	GetActivePaymentByBidID(ctx context.Context, bidID string) (*models.Payment, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	// MarkPaidAndAward applies the award transition as one transaction:
	// payment created->paid (conditional on the current status, the
	// linearization point), bid -> accepted, project -> awarded with
	// awarded_bid_id set. Returns false without changes when the payment is no
	// longer in "created".
	MarkPaidAndAward(ctx context.Context, gatewayOrderID, gatewayPaymentID string, viaWebhook bool, entry models.AuditEntry) (bool, error)
	// MarkWebhookProcessed records webhook delivery on an already-paid payment
	// without re-running the award transition. Returns false when the webhook
	// flag was already set.
	MarkWebhookProcessed(ctx context.Context, gatewayOrderID, gatewayPaymentID string, entry models.AuditEntry) (bool, error)
	// MarkFailed applies created->failed. Conditional on webhook_processed
	// being unset; returns false without changes otherwise.
	MarkFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID string, entry models.AuditEntry) (bool, error)
	AppendAuditEntry(ctx context.Context, gatewayOrderID string, entry models.AuditEntry) error
}

// Gateway is the slice of the external payment gateway the order service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	KeyID() string
}

// Notifier is the real-time fan-out collaborator. The payment core publishes
// events to it instead of coupling to a broadcast transport.
type Notifier interface {
	Publish(event string, payload any)
}

// mismatchDisputeThreshold is the number of mismatched webhook deliveries for
// one order after which further redeliveries are acknowledged instead of
// rejected, so a permanently wrong amount cannot retry-loop the gateway
// forever. The payment stays unpaid for manual investigation.
const mismatchDisputeThreshold = 3

type Service struct {
	store         Store
	gateway       Gateway
	notifier      Notifier
	keySecret     string
	webhookSecret string
	locks         *orderLocks
}

// NewService wires the payment order and verification services. webhookSecret
// may be empty, in which case webhook signatures are checked against the
// gateway key secret.
func NewService(store Store, gateway Gateway, notifier Notifier, keySecret, webhookSecret string) *Service {
	if webhookSecret == "" {
		webhookSecret = keySecret
	}
	return &Service{
		store:         store,
		gateway:       gateway,
		notifier:      notifier,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		locks:         newOrderLocks(),
	}
}

// OrderResult is returned to the client after order creation. It never carries
// the gateway key secret.
type OrderResult struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	PublicKey   string `json:"public_key"`
	PaymentType string `json:"payment_type"`
}

// CreateOrder checks every precondition in a fixed order, registers the order
// with the gateway and persists the local payment row in state "created".
func (s *Service) CreateOrder(ctx context.Context, requester *models.User, bidID, projectID string, amount decimal.Decimal, currency string, paymentType models.PaymentType) (*OrderResult, error) {
	bid, err := s.store.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, internal("failed to load bid", err)
	}
	if bid == nil {
		return nil, notFound("bid_not_found", "Bid not found.")
	}

	project, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, internal("failed to load project", err)
	}
	if project == nil {
		return nil, notFound("project_not_found", "Project not found.")
	}

	if bid.ProjectID != projectID {
		slog.Warn("order creation with mismatched bid/project", "bid_id", bidID, "project_id", projectID, "requester", requester.ID)
		return nil, integrity("bid_project_mismatch", "Bid does not belong to this project.")
	}

	if project.OwnerID != requester.ID {
		return nil, forbidden("not_owner", "Only the project owner can pay for a bid.")
	}

	if bid.Status != models.BidStatusPending {
		return nil, conflict("bid_not_pending", "Bid is no longer open for payment.")
	}

	if !amount.Equal(bid.Price) {
		return nil, conflict("amount_mismatch", "Amount does not match the bid price.")
	}

	existing, err := s.store.GetActivePaymentByBidID(ctx, bidID)
	if err != nil {
		return nil, internal("failed to check existing payments", err)
	}
	if existing != nil {
		return nil, conflict("duplicate_payment", "A payment for this bid already exists.")
	}

	receipt := "rcpt_" + uuid.NewString()[:12]
	minor := models.MinorUnits(amount)

	order, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   minor,
		Currency: currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"bid_id":     bidID,
			"project_id": projectID,
		},
	})
	if err != nil {
		if errors.Is(err, razorpay.ErrIndeterminate) {
			slog.Error("gateway order creation outcome unknown, manual reconciliation required",
				"bid_id", bidID, "receipt", receipt, "error", err)
			return nil, indeterminate("order_indeterminate", "Payment gateway did not confirm the order. Do not retry; contact support.", err)
		}
		return nil, internal("gateway order creation failed", err)
	}

	payment := &models.Payment{
		ID:             "pay_" + uuid.NewString()[:12],
		GatewayOrderID: order.ID,
		ProjectID:      projectID,
		BidID:          bidID,
		PayerID:        project.OwnerID,
		PayeeID:        bid.SupplierID,
		Amount:         amount,
		Currency:       currency,
		Status:         models.PaymentStatusCreated,
		Type:           paymentType,
		AuditTrail: []models.AuditEntry{{
			Action:    "payment_order_created",
			Actor:     requester.ID,
			Timestamp: time.Now().UTC(),
			Details: map[string]any{
				"order_id": order.ID,
				"amount":   amount.String(),
				"currency": currency,
				"type":     string(paymentType),
			},
		}},
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		// The remote order exists but the local row does not. No remote cancel
		// is available; leave a loud trail for manual reconciliation.
		slog.Error("local payment persist failed after remote order was created, manual reconciliation required",
			"gateway_order_id", order.ID, "bid_id", bidID, "receipt", receipt, "error", err)
		return nil, internal("failed to persist payment", err)
	}

	slog.Info("payment order created", "payment_id", payment.ID, "gateway_order_id", order.ID,
		"bid_id", bidID, "amount_minor", minor, "currency", currency)

	return &OrderResult{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		Amount:      minor,
		Currency:    currency,
		PublicKey:   s.gateway.KeyID(),
		PaymentType: string(paymentType),
	}, nil
}

// VerificationResult reports the outcome of the synchronous confirmation path.
type VerificationResult struct {
	Payment         models.PaymentSummary `json:"payment"`
	BidAwarded      bool                  `json:"bid_awarded"`
	AlreadyVerified bool                  `json:"already_verified"`
}

// VerifyClientConfirmation consumes the fields the gateway checkout hands back
// to the payer's browser and, if valid, performs the award transition. Repeat
// calls after success are a benign no-op.
func (s *Service) VerifyClientConfirmation(ctx context.Context, requester *models.User, orderID, paymentID, signature string) (*VerificationResult, error) {
	release := s.locks.acquire(orderID)
	defer release()

	payment, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, internal("failed to load payment", err)
	}
	if payment == nil {
		return nil, notFound("payment_not_found", "Payment not found.")
	}

	if payment.PayerID != requester.ID {
		return nil, forbidden("not_payer", "Only the payer can confirm this payment.")
	}

	if payment.Status == models.PaymentStatusPaid {
		// Idempotent short-circuit: the webhook or an earlier confirmation won
		// the race. Not an error the UI should alarm on.
		return &VerificationResult{
			Payment:         payment.Summary(requester.ID),
			BidAwarded:      true,
			AlreadyVerified: true,
		}, nil
	}

	if !razorpay.VerifySignature(razorpay.ClientConfirmationMessage(orderID, paymentID), signature, s.keySecret) {
		// Possible tampering; record with identifying context for alerting.
		slog.Error("payment confirmation signature rejected",
			"gateway_order_id", orderID, "gateway_payment_id", paymentID, "requester", requester.ID)
		return nil, security("invalid_signature", "Payment confirmation could not be verified.")
	}

	// Defense-in-depth against stale or forged payment rows: re-check the
	// denormalized references before mutating anything.
	bid, err := s.store.GetBidByID(ctx, payment.BidID)
	if err != nil {
		return nil, internal("failed to load bid", err)
	}
	project, err := s.store.GetProjectByID(ctx, payment.ProjectID)
	if err != nil {
		return nil, internal("failed to load project", err)
	}
	if bid == nil || project == nil || bid.ProjectID != payment.ProjectID || project.OwnerID != requester.ID {
		slog.Error("payment row references inconsistent entities",
			"gateway_order_id", orderID, "payment_id", payment.ID, "requester", requester.ID)
		return nil, integrity("payment_inconsistent", "Payment references could not be validated.")
	}

	entry := models.AuditEntry{
		Action:    "payment_verified",
		Actor:     requester.ID,
		Timestamp: time.Now().UTC(),
		Details:   map[string]any{"gateway_payment_id": paymentID},
	}

	applied, err := s.store.MarkPaidAndAward(ctx, orderID, paymentID, false, entry)
	if err != nil {
		return nil, internal("award transition failed", err)
	}
	if !applied {
		// Lost a cross-process race after the status read; treat like the
		// already-paid short-circuit.
		updated, err := s.store.GetPaymentByOrderID(ctx, orderID)
		if err != nil || updated == nil {
			return nil, internal("failed to reload payment", err)
		}
		return &VerificationResult{
			Payment:         updated.Summary(requester.ID),
			BidAwarded:      updated.Status == models.PaymentStatusPaid,
			AlreadyVerified: true,
		}, nil
	}

	slog.Info("payment verified via client confirmation",
		"payment_id", payment.ID, "gateway_order_id", orderID, "bid_id", payment.BidID)
	s.notifier.Publish("payment.verified", map[string]any{
		"payment_id": payment.ID,
		"project_id": payment.ProjectID,
		"bid_id":     payment.BidID,
	})

	updated, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil || updated == nil {
		return nil, internal("failed to reload payment", err)
	}

	return &VerificationResult{
		Payment:    updated.Summary(requester.ID),
		BidAwarded: true,
	}, nil
}

// WebhookOutcome tells the transport how to acknowledge a webhook delivery.
type WebhookOutcome string

const (
	WebhookAccepted         WebhookOutcome = "accepted"
	WebhookAlreadyProcessed WebhookOutcome = "already_processed"
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookDisputed         WebhookOutcome = "disputed"
)

// HandleWebhook consumes one raw webhook delivery. rawBody must be the exact
// bytes the gateway signed; re-serializing a parsed object is unsafe. A nil
// error means the delivery is acknowledged; KindSecurity and KindIntegrity
// errors are deliberate rejections the gateway must not retry, anything else
// is an internal failure it should retry.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (WebhookOutcome, error) {
	if signature == "" {
		slog.Warn("webhook delivery without signature header")
		return "", security("missing_signature", "Signature header is required.")
	}

	if !razorpay.VerifySignature(string(rawBody), signature, s.webhookSecret) {
		eventName := "unparseable"
		var peek struct {
			Event string `json:"event"`
		}
		if json.Unmarshal(rawBody, &peek) == nil && peek.Event != "" {
			eventName = peek.Event
		}
		slog.Error("webhook signature rejected", "event", eventName)
		return "", security("invalid_signature", "Webhook signature could not be verified.")
	}

	var event razorpay.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		slog.Warn("webhook body is not valid JSON", "error", err)
		return "", integrity("malformed_event", "Event body could not be parsed.")
	}
	if event.Event == "" {
		slog.Warn("webhook event name missing")
		return "", integrity("malformed_event", "Event name is required.")
	}

	switch event.Event {
	case razorpay.EventPaymentCaptured:
		return s.handleCaptured(ctx, event.Payload.Payment.Entity)
	case razorpay.EventPaymentFailed:
		return s.handleFailed(ctx, event.Payload.Payment.Entity)
	default:
		slog.Debug("webhook event ignored", "event", event.Event)
		return WebhookIgnored, nil
	}
}

func (s *Service) handleCaptured(ctx context.Context, entity razorpay.WebhookPaymentEntity) (WebhookOutcome, error) {
	if entity.OrderID == "" || entity.ID == "" {
		return "", integrity("malformed_event", "Payment entity is incomplete.")
	}

	release := s.locks.acquire(entity.OrderID)
	defer release()

	payment, err := s.store.GetPaymentByOrderID(ctx, entity.OrderID)
	if err != nil {
		return "", internal("failed to load payment", err)
	}
	if payment == nil {
		// The gateway may deliver events for orders this system never created
		// or has since deleted. Acknowledge and move on.
		slog.Info("webhook for unknown order acknowledged", "gateway_order_id", entity.OrderID)
		return WebhookIgnored, nil
	}

	if payment.WebhookProcessed {
		slog.Info("webhook redelivery acknowledged", "gateway_order_id", entity.OrderID)
		return WebhookAlreadyProcessed, nil
	}

	if entity.Amount != models.MinorUnits(payment.Amount) {
		return s.handleAmountMismatch(ctx, payment, entity)
	}

	entry := models.AuditEntry{
		Action:    "webhook_payment_captured",
		Timestamp: time.Now().UTC(),
		Details: map[string]any{
			"gateway_payment_id": entity.ID,
			"amount_minor":       entity.Amount,
		},
	}

	if payment.Status == models.PaymentStatusCreated {
		applied, err := s.store.MarkPaidAndAward(ctx, entity.OrderID, entity.ID, true, entry)
		if err != nil {
			return "", internal("award transition failed", err)
		}
		if applied {
			slog.Info("payment captured via webhook", "payment_id", payment.ID,
				"gateway_order_id", entity.OrderID, "bid_id", payment.BidID)
			s.notifier.Publish("payment.captured", map[string]any{
				"payment_id": payment.ID,
				"project_id": payment.ProjectID,
				"bid_id":     payment.BidID,
			})
			return WebhookAccepted, nil
		}
		// Raced with another writer between the read and the conditional
		// update; fall through and record the delivery.
		payment, err = s.store.GetPaymentByOrderID(ctx, entity.OrderID)
		if err != nil || payment == nil {
			return "", internal("failed to reload payment", err)
		}
	}

	if payment.Status == models.PaymentStatusPaid {
		// The client confirmation won the race. Record the delivery so
		// redeliveries short-circuit, without re-running the award.
		if _, err := s.store.MarkWebhookProcessed(ctx, entity.OrderID, entity.ID, entry); err != nil {
			return "", internal("failed to record webhook delivery", err)
		}
		return WebhookAlreadyProcessed, nil
	}

	slog.Error("captured event for payment in terminal state", "payment_id", payment.ID,
		"gateway_order_id", entity.OrderID, "status", payment.Status)
	return "", integrity("status_conflict", "Payment is not in a payable state.")
}

// handleAmountMismatch rejects the delivery without marking it processed so
// the discrepancy stays visible. Because the gateway retries rejected
// deliveries, repeated mismatches for the same order are eventually
// acknowledged as disputed while the payment stays unpaid.
func (s *Service) handleAmountMismatch(ctx context.Context, payment *models.Payment, entity razorpay.WebhookPaymentEntity) (WebhookOutcome, error) {
	mismatches := 0
	for _, e := range payment.AuditTrail {
		if e.Action == "webhook_amount_mismatch" {
			mismatches++
		}
	}

	entry := models.AuditEntry{
		Action:    "webhook_amount_mismatch",
		Timestamp: time.Now().UTC(),
		Details: map[string]any{
			"gateway_payment_id": entity.ID,
			"received_minor":     entity.Amount,
			"expected_minor":     models.MinorUnits(payment.Amount),
		},
	}
	if err := s.store.AppendAuditEntry(ctx, payment.GatewayOrderID, entry); err != nil {
		return "", internal("failed to record amount mismatch", err)
	}

	if mismatches+1 >= mismatchDisputeThreshold {
		slog.Error("webhook amount mismatch marked disputed after repeated deliveries",
			"payment_id", payment.ID, "gateway_order_id", payment.GatewayOrderID,
			"received_minor", entity.Amount, "expected_minor", models.MinorUnits(payment.Amount),
			"deliveries", mismatches+1)
		return WebhookDisputed, nil
	}

	slog.Error("webhook amount mismatch rejected", "payment_id", payment.ID,
		"gateway_order_id", payment.GatewayOrderID,
		"received_minor", entity.Amount, "expected_minor", models.MinorUnits(payment.Amount))
	return "", integrity("amount_mismatch", "Event amount does not match the payment.")
}

func (s *Service) handleFailed(ctx context.Context, entity razorpay.WebhookPaymentEntity) (WebhookOutcome, error) {
	if entity.OrderID == "" {
		return "", integrity("malformed_event", "Payment entity is incomplete.")
	}

	release := s.locks.acquire(entity.OrderID)
	defer release()

	payment, err := s.store.GetPaymentByOrderID(ctx, entity.OrderID)
	if err != nil {
		return "", internal("failed to load payment", err)
	}
	if payment == nil {
		slog.Info("webhook for unknown order acknowledged", "gateway_order_id", entity.OrderID)
		return WebhookIgnored, nil
	}
	if payment.WebhookProcessed {
		return WebhookAlreadyProcessed, nil
	}

	entry := models.AuditEntry{
		Action:    "webhook_payment_failed",
		Timestamp: time.Now().UTC(),
		Details:   map[string]any{"gateway_payment_id": entity.ID},
	}
	applied, err := s.store.MarkFailed(ctx, entity.OrderID, entity.ID, entry)
	if err != nil {
		return "", internal("failed to record payment failure", err)
	}
	if !applied {
		return WebhookAlreadyProcessed, nil
	}

	slog.Info("payment failed via webhook", "payment_id", payment.ID, "gateway_order_id", entity.OrderID)
	s.notifier.Publish("payment.failed", map[string]any{
		"payment_id": payment.ID,
		"project_id": payment.ProjectID,
		"bid_id":     payment.BidID,
	})
	return WebhookAccepted, nil
}
