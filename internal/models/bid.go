// internal/models/bid.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

type Bid struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	SupplierID   string          `json:"supplier_id"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DeliveryDays int             `json:"delivery_days"`
	Note         *string         `json:"note,omitempty"`
	Status       BidStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PlaceBidForm struct {
	ProjectID    string `json:"project_id" validate:"required,uuid4"`
	Price        string `json:"price" validate:"required,decimal_amount"`
	Currency     string `json:"currency" validate:"required,len=3,uppercase"`
	DeliveryDays int    `json:"delivery_days" validate:"required,min=1,max=3650"`
	Note         string `json:"note" validate:"omitempty,max=2000"`
}
