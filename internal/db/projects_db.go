// internal/db/projects_db.go
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

const projectColumns = `id, title, description, category, budget, currency, location, status, owner_id, awarded_bid_id, created_at, updated_at`

type projectRowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row projectRowScanner) (*models.Project, error) {
	var p models.Project
	var location, awardedBidID sql.NullString

	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Category, &p.Budget, &p.Currency,
		&location, &p.Status, &p.OwnerID, &awardedBidID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	if location.Valid {
		p.Location = &location.String
	}
	if awardedBidID.Valid {
		p.AwardedBidID = &awardedBidID.String
	}
	return &p, nil
}

func CreateProject(project *models.Project) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusOpen
	}
	query := `INSERT INTO projects (id, title, description, category, budget, currency, location, status, owner_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := DB.Exec(query,
		project.ID, project.Title, project.Description, project.Category,
		project.Budget, project.Currency, sqlNullString(project.Location),
		project.Status, project.OwnerID, now, now,
	)
	if err != nil {
		slog.Error("Failed to create project", "title", project.Title, "owner_id", project.OwnerID, "error", err)
		return fmt.Errorf("failed to create project: %w", err)
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func GetProjectByID(id string) (*models.Project, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(DB.QueryRow(query, id))
}

// ListProjects returns open-and-later projects, newest first. When ownerID is
// non-empty only that owner's projects are returned, drafts included.
func ListProjects(ownerID string, limit int) ([]models.Project, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if ownerID != "" {
		query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?`
		rows, err = DB.Query(query, ownerID, limit)
	} else {
		query := `SELECT ` + projectColumns + ` FROM projects WHERE status <> 'draft' ORDER BY created_at DESC LIMIT ?`
		rows, err = DB.Query(query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			slog.Error("Failed to scan project row", "error", err)
			continue
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// AwardProjectDirect awards a bid without a payment, for owners settling
// offline. One transaction: bid pending -> accepted, project -> awarded with
// awarded_bid_id, remaining pending bids -> rejected. Returns false without
// changes when the bid is no longer pending or the project already has an
// awarded bid.
func AwardProjectDirect(projectID, bidID, ownerID string) (applied bool, err error) {
	if DB == nil {
		return false, errors.New("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin award transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()

	res, err := tx.Exec(
		`UPDATE bids SET status = 'accepted', updated_at = ? WHERE id = ? AND project_id = ? AND status = 'pending'`,
		now, bidID, projectID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to accept bid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read accepted rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback()
		return false, nil
	}

	res, err = tx.Exec(
		`UPDATE projects SET status = 'awarded', awarded_bid_id = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND awarded_bid_id IS NULL`,
		bidID, now, projectID, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to award project: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read awarded rows: %w", err)
	}
	if affected == 0 {
		tx.Rollback()
		return false, nil
	}

	_, err = tx.Exec(
		`UPDATE bids SET status = 'rejected', updated_at = ? WHERE project_id = ? AND status = 'pending'`,
		now, projectID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject remaining bids: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit award transaction: %w", err)
	}
	return true, nil
}

func UpdateProjectStatus(id string, status models.ProjectStatus) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	query := `UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`
	_, err := DB.Exec(query, status, time.Now(), id)
	if err != nil {
		slog.Error("Failed to update project status", "project_id", id, "status", status, "error", err)
		return fmt.Errorf("failed to update project status: %w", err)
	}
	return nil
}
