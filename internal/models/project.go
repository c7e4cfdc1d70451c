// internal/models/project.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusAwarded    ProjectStatus = "awarded"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

type Project struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Budget       decimal.Decimal `json:"budget"`
	Currency     string          `json:"currency"`
	Location     *string         `json:"location,omitempty"`
	Status       ProjectStatus   `json:"status"`
	OwnerID      string          `json:"owner_id"`
	AwardedBidID *string         `json:"awarded_bid_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type CreateProjectForm struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required,max=100"`
	Budget      string `json:"budget" validate:"required,decimal_amount"`
	Currency    string `json:"currency" validate:"required,len=3,uppercase"`
	Location    string `json:"location" validate:"omitempty,max=255"`
	Draft       bool   `json:"draft"`
}

// CanTransitionTo restricts owner-driven status changes to the forward
// lifecycle. Awarding is excluded here: it only happens through the payment
// flow or the explicit award operation, never a plain status update.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	switch s {
	case ProjectStatusDraft:
		return next == ProjectStatusOpen || next == ProjectStatusCancelled
	case ProjectStatusOpen:
		return next == ProjectStatusCancelled
	case ProjectStatusAwarded:
		return next == ProjectStatusInProgress || next == ProjectStatusCancelled
	case ProjectStatusInProgress:
		return next == ProjectStatusCompleted
	default:
		return false
	}
}
