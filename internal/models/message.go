// internal/models/message.go
package models

import "time"

type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	ProjectID   *string   `json:"project_id,omitempty"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type SendMessageForm struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid4"`
	ProjectID   string `json:"project_id" validate:"omitempty,uuid4"`
	Content     string `json:"content" validate:"required,max=5000"`
}
