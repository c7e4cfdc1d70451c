// internal/db/bids_db.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buildbidz.in/internal/models"

	"github.com/google/uuid"
)

const bidColumns = `id, project_id, supplier_id, price, currency, delivery_days, note, status, created_at, updated_at`

type bidRowScanner interface {
	Scan(dest ...any) error
}

func scanBid(row bidRowScanner) (*models.Bid, error) {
	var b models.Bid
	var note sql.NullString

	err := row.Scan(
		&b.ID, &b.ProjectID, &b.SupplierID, &b.Price, &b.Currency,
		&b.DeliveryDays, &note, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan bid: %w", err)
	}

	if note.Valid {
		b.Note = &note.String
	}
	return &b, nil
}

func CreateBid(bid *models.Bid) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	if bid.Status == "" {
		bid.Status = models.BidStatusPending
	}
	query := `INSERT INTO bids (id, project_id, supplier_id, price, currency, delivery_days, note, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := DB.Exec(query,
		bid.ID, bid.ProjectID, bid.SupplierID, bid.Price, bid.Currency,
		bid.DeliveryDays, sqlNullString(bid.Note), bid.Status, now, now,
	)
	if err != nil {
		slog.Error("Failed to create bid", "project_id", bid.ProjectID, "supplier_id", bid.SupplierID, "error", err)
		return fmt.Errorf("failed to create bid: %w", err)
	}
	bid.CreatedAt = now
	bid.UpdatedAt = now
	return nil
}

func GetBidByID(id string) (*models.Bid, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	return scanBid(DB.QueryRow(query, id))
}

func ListBidsByProject(projectID string) ([]models.Bid, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE project_id = ? ORDER BY created_at ASC`
	rows, err := DB.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			slog.Error("Failed to scan bid row", "error", err)
			continue
		}
		bids = append(bids, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}
	return bids, nil
}

// WithdrawBid moves a pending bid to withdrawn. The status condition keeps a
// concurrent award from being overwritten.
func WithdrawBid(id, supplierID string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialized")
	}
	query := `UPDATE bids SET status = ?, updated_at = ? WHERE id = ? AND supplier_id = ? AND status = ?`
	res, err := DB.Exec(query, models.BidStatusWithdrawn, time.Now(), id, supplierID, models.BidStatusPending)
	if err != nil {
		slog.Error("Failed to withdraw bid", "bid_id", id, "error", err)
		return false, fmt.Errorf("failed to withdraw bid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}
