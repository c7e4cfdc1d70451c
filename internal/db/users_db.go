// internal/db/users_db.go
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

const userColumns = `id, username, email, password_hash, role, company_name, contact_name, phone, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var companyName, contactName, phone sql.NullString

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&companyName, &contactName, &phone, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if companyName.Valid {
		u.CompanyName = &companyName.String
	}
	if contactName.Valid {
		u.ContactName = &contactName.String
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	return &u, nil
}

func CreateUser(user *models.User) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `INSERT INTO users (id, username, email, password_hash, role, company_name, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := DB.Exec(query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role,
		sqlNullString(user.CompanyName), now, now,
	)
	if err != nil {
		slog.Error("Failed to create user", "email", user.Email, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func GetUserByID(id string) (*models.User, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(DB.QueryRow(query, id))
}

func GetUserByEmail(email string) (*models.User, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(DB.QueryRow(query, email))
}

func sqlNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
