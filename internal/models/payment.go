// internal/models/payment.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentType string

const (
	PaymentTypeEscrow  PaymentType = "escrow"
	PaymentTypeDirect  PaymentType = "direct"
	PaymentTypePartial PaymentType = "partial"
)

// Payment ties a gateway order to one bid. At most one payment with a status
// other than "failed" may exist per bid; order creation checks this explicitly.
type Payment struct {
	ID               string          `json:"id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	ProjectID        string          `json:"project_id"`
	BidID            string          `json:"bid_id"`
	PayerID          string          `json:"payer_id"`
	PayeeID          string          `json:"payee_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	Type             PaymentType     `json:"type"`
	WebhookProcessed bool            `json:"webhook_processed"`
	AuditTrail       []AuditEntry    `json:"audit_trail,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AuditEntry is one record of the append-only payment audit trail. The trail is
// kept on the row indefinitely for dispute resolution.
type AuditEntry struct {
	Action    string         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// MinorUnits converts an amount to the gateway's smallest-denomination integer
// (paise for INR, cents for USD). Rounds half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type CreateOrderForm struct {
	BidID     string `json:"bid_id" validate:"required,uuid4"`
	ProjectID string `json:"project_id" validate:"required,uuid4"`
	Amount    string `json:"amount" validate:"required,decimal_amount"`
	Currency  string `json:"currency" validate:"required,len=3,uppercase"`
	Type      string `json:"type" validate:"required,oneof=escrow direct partial"`
}

type VerifyPaymentForm struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required,max=255"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=255"`
	Signature        string `json:"signature" validate:"required,max=255"`
}

// PaymentSummary is the sanitized projection returned by read endpoints. The
// audit trail is attached only when the requester is the payer.
type PaymentSummary struct {
	ID               string          `json:"id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	ProjectID        string          `json:"project_id"`
	BidID            string          `json:"bid_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	Type             PaymentType     `json:"type"`
	CreatedAt        time.Time       `json:"created_at"`
	AuditTrail       []AuditEntry    `json:"audit_trail,omitempty"`
}

// Summary projects p for the given requester, including the audit trail for the
// payer only.
func (p *Payment) Summary(requesterID string) PaymentSummary {
	s := PaymentSummary{
		ID:               p.ID,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		ProjectID:        p.ProjectID,
		BidID:            p.BidID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		Type:             p.Type,
		CreatedAt:        p.CreatedAt,
	}
	if requesterID == p.PayerID {
		s.AuditTrail = p.AuditTrail
	}
	return s
}
