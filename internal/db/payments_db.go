// internal/db/payments_db.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buildbidz.in/internal/models"
)

// PaymentStore implements the persistence contract of the payment services.
// Unlike the read-mostly helpers in this package it carries its own handle and
// uses context-aware queries, because the award transition needs transactions.
type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(dbConn *sql.DB) *PaymentStore {
	return &PaymentStore{db: dbConn}
}

const paymentColumns = `id, gateway_order_id, gateway_payment_id, project_id, bid_id, payer_id, payee_id,
	amount, currency, status, type, webhook_processed, audit_trail, created_at, updated_at`

type paymentRowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row paymentRowScanner) (*models.Payment, error) {
	var p models.Payment
	var gatewayPaymentID sql.NullString
	var auditRaw []byte

	err := row.Scan(
		&p.ID, &p.GatewayOrderID, &gatewayPaymentID, &p.ProjectID, &p.BidID,
		&p.PayerID, &p.PayeeID, &p.Amount, &p.Currency, &p.Status, &p.Type,
		&p.WebhookProcessed, &auditRaw, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	if gatewayPaymentID.Valid {
		p.GatewayPaymentID = &gatewayPaymentID.String
	}
	if len(auditRaw) > 0 {
		if err := json.Unmarshal(auditRaw, &p.AuditTrail); err != nil {
			return nil, fmt.Errorf("failed to decode audit trail for payment %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (ps *PaymentStore) GetBidByID(ctx context.Context, id string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	return scanBid(ps.db.QueryRowContext(ctx, query, id))
}

func (ps *PaymentStore) GetProjectByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(ps.db.QueryRowContext(ctx, query, id))
}

func (ps *PaymentStore) GetPaymentByOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = ?`
	return scanPayment(ps.db.QueryRowContext(ctx, query, gatewayOrderID))
}

func (ps *PaymentStore) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	return scanPayment(ps.db.QueryRowContext(ctx, query, id))
}

// GetActivePaymentByBidID enforces the one-non-failed-payment-per-bid rule at
// order creation time; there is deliberately no DB constraint for it.
func (ps *PaymentStore) GetActivePaymentByBidID(ctx context.Context, bidID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE bid_id = ? AND status <> 'failed' LIMIT 1`
	return scanPayment(ps.db.QueryRowContext(ctx, query, bidID))
}

func (ps *PaymentStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	auditRaw, err := json.Marshal(p.AuditTrail)
	if err != nil {
		return fmt.Errorf("failed to encode audit trail: %w", err)
	}
	query := `INSERT INTO payments (id, gateway_order_id, gateway_payment_id, project_id, bid_id, payer_id, payee_id,
	                                amount, currency, status, type, webhook_processed, audit_trail, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err = ps.db.ExecContext(ctx, query,
		p.ID, p.GatewayOrderID, sqlNullString(p.GatewayPaymentID), p.ProjectID, p.BidID,
		p.PayerID, p.PayeeID, p.Amount, p.Currency, p.Status, p.Type,
		p.WebhookProcessed, auditRaw, now, now,
	)
	if err != nil {
		slog.Error("Failed to insert payment", "payment_id", p.ID, "gateway_order_id", p.GatewayOrderID, "error", err)
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// lockPaymentTx reads the payment row inside tx with a row lock.
func lockPaymentTx(ctx context.Context, tx *sql.Tx, gatewayOrderID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = ? FOR UPDATE`
	return scanPayment(tx.QueryRowContext(ctx, query, gatewayOrderID))
}

func appendAuditJSON(p *models.Payment, entry models.AuditEntry) ([]byte, error) {
	trail := append(p.AuditTrail, entry)
	raw, err := json.Marshal(trail)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit trail: %w", err)
	}
	return raw, nil
}

// MarkPaidAndAward performs the award transition as a single transaction. The
// conditional update on payments.status is the linearization point: a payment
// that has already left "created" is returned untouched.
func (ps *PaymentStore) MarkPaidAndAward(ctx context.Context, gatewayOrderID, gatewayPaymentID string, viaWebhook bool, entry models.AuditEntry) (applied bool, err error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin award transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err := lockPaymentTx(ctx, tx, gatewayOrderID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, fmt.Errorf("payment %s disappeared during award", gatewayOrderID)
	}
	if p.Status != models.PaymentStatusCreated {
		_ = tx.Rollback()
		return false, nil
	}

	auditRaw, err := appendAuditJSON(p, entry)
	if err != nil {
		return false, err
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, gateway_payment_id = ?, webhook_processed = ?, audit_trail = ?, updated_at = ?
		 WHERE gateway_order_id = ? AND status = ?`,
		models.PaymentStatusPaid, gatewayPaymentID, viaWebhook, auditRaw, now,
		gatewayOrderID, models.PaymentStatusCreated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected != 1 {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE bids SET status = ?, updated_at = ? WHERE id = ?`,
		models.BidStatusAccepted, now, p.BidID,
	); err != nil {
		return false, fmt.Errorf("failed to accept bid %s: %w", p.BidID, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE projects SET status = ?, awarded_bid_id = ?, updated_at = ? WHERE id = ?`,
		models.ProjectStatusAwarded, p.BidID, now, p.ProjectID,
	); err != nil {
		return false, fmt.Errorf("failed to award project %s: %w", p.ProjectID, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit award transaction: %w", err)
	}
	return true, nil
}

// MarkWebhookProcessed records a webhook delivery on a payment that is already
// paid, without touching the bid or project.
func (ps *PaymentStore) MarkWebhookProcessed(ctx context.Context, gatewayOrderID, gatewayPaymentID string, entry models.AuditEntry) (applied bool, err error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err := lockPaymentTx(ctx, tx, gatewayOrderID)
	if err != nil {
		return false, err
	}
	if p == nil || p.WebhookProcessed {
		_ = tx.Rollback()
		return false, nil
	}

	auditRaw, err := appendAuditJSON(p, entry)
	if err != nil {
		return false, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE payments SET webhook_processed = TRUE, gateway_payment_id = COALESCE(gateway_payment_id, ?), audit_trail = ?, updated_at = ?
		 WHERE gateway_order_id = ? AND webhook_processed = FALSE`,
		gatewayPaymentID, auditRaw, time.Now(), gatewayOrderID,
	); err != nil {
		return false, fmt.Errorf("failed to record webhook delivery: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// MarkFailed applies created->failed from a webhook failure event. A payment
// that is paid, already failed, or already webhook-processed is left alone.
func (ps *PaymentStore) MarkFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID string, entry models.AuditEntry) (applied bool, err error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err := lockPaymentTx(ctx, tx, gatewayOrderID)
	if err != nil {
		return false, err
	}
	if p == nil || p.Status != models.PaymentStatusCreated || p.WebhookProcessed {
		_ = tx.Rollback()
		return false, nil
	}

	auditRaw, err := appendAuditJSON(p, entry)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, gateway_payment_id = ?, webhook_processed = TRUE, audit_trail = ?, updated_at = ?
		 WHERE gateway_order_id = ? AND status = ? AND webhook_processed = FALSE`,
		models.PaymentStatusFailed, gatewayPaymentID, auditRaw, time.Now(),
		gatewayOrderID, models.PaymentStatusCreated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected != 1 {
		_ = tx.Rollback()
		return false, nil
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// AppendAuditEntry adds one record to the append-only trail.
func (ps *PaymentStore) AppendAuditEntry(ctx context.Context, gatewayOrderID string, entry models.AuditEntry) (err error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err := lockPaymentTx(ctx, tx, gatewayOrderID)
	if err != nil {
		return err
	}
	if p == nil {
		_ = tx.Rollback()
		return fmt.Errorf("payment %s not found for audit append", gatewayOrderID)
	}

	auditRaw, err := appendAuditJSON(p, entry)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE payments SET audit_trail = ?, updated_at = ? WHERE gateway_order_id = ?`,
		auditRaw, time.Now(), gatewayOrderID,
	); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return tx.Commit()
}

// ListPaymentsForUser returns payments where the user is payer or payee,
// newest first.
func (ps *PaymentStore) ListPaymentsForUser(ctx context.Context, userID string, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payer_id = ? OR payee_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := ps.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			slog.Error("Failed to scan payment row", "error", err)
			continue
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}
