// internal/db/messages_db.go
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

func CreateMessage(msg *models.Message) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	query := `INSERT INTO messages (id, sender_id, recipient_id, project_id, content, is_read, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := DB.Exec(query,
		msg.ID, msg.SenderID, msg.RecipientID, sqlNullString(msg.ProjectID),
		msg.Content, msg.IsRead, now,
	)
	if err != nil {
		slog.Error("Failed to create message", "sender_id", msg.SenderID, "recipient_id", msg.RecipientID, "error", err)
		return fmt.Errorf("failed to create message: %w", err)
	}
	msg.CreatedAt = now
	return nil
}

// ListMessagesForUser returns messages sent or received by the user, newest
// first.
func ListMessagesForUser(userID string, limit int) ([]models.Message, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, sender_id, recipient_id, project_id, content, is_read, created_at
	          FROM messages WHERE sender_id = ? OR recipient_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := DB.Query(query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var projectID sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &projectID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			slog.Error("Failed to scan message row", "error", err)
			continue
		}
		if projectID.Valid {
			m.ProjectID = &projectID.String
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func MarkMessageRead(id, recipientID string) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	query := `UPDATE messages SET is_read = TRUE WHERE id = ? AND recipient_id = ?`
	_, err := DB.Exec(query, id, recipientID)
	if err != nil {
		slog.Error("Failed to mark message read", "message_id", id, "error", err)
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}
