// internal/db/stats_db.go
package db

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DashboardStats is the aggregate snapshot for a buyer's dashboard.
type DashboardStats struct {
	ActiveProjects int             `json:"active_projects"`
	PendingBids    int             `json:"pending_bids"`
	AwardedTotal   decimal.Decimal `json:"awarded_total"`
	PaidPayments   int             `json:"paid_payments"`
}

func GetDashboardStats(ownerID string) (*DashboardStats, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}

	stats := &DashboardStats{AwardedTotal: decimal.Zero}

	err := DB.QueryRow(
		`SELECT COUNT(*) FROM projects WHERE owner_id = ? AND status IN ('open', 'awarded', 'in_progress')`,
		ownerID,
	).Scan(&stats.ActiveProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to count active projects: %w", err)
	}

	err = DB.QueryRow(
		`SELECT COUNT(*) FROM bids b JOIN projects p ON p.id = b.project_id
		 WHERE p.owner_id = ? AND b.status = 'pending'`,
		ownerID,
	).Scan(&stats.PendingBids)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending bids: %w", err)
	}

	err = DB.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM payments WHERE payer_id = ? AND status = 'paid'`,
		ownerID,
	).Scan(&stats.PaidPayments, &stats.AwardedTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to sum paid payments: %w", err)
	}

	return stats, nil
}
