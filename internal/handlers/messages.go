// internal/handlers/messages.go
package handlers

import (
	"log/slog"
	"net/http"

	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/notify"
	"buildbidz.in/internal/validation"
)

type MessageHandlers struct {
	Notifier *notify.Hub
}

func NewMessageHandlers(hub *notify.Hub) *MessageHandlers {
	return &MessageHandlers{Notifier: hub}
}

// MessagesHandler dispatches /api/messages: POST sends, GET lists the
// caller's conversation history.
func (h *MessageHandlers) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.sendMessage(w, r)
	case http.MethodGet:
		h.listMessages(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *MessageHandlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var form models.SendMessageForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}
	if form.RecipientID == user.ID {
		writeError(w, http.StatusBadRequest, "Cannot send a message to yourself.")
		return
	}

	recipient, err := db.GetUserByID(form.RecipientID)
	if err != nil {
		slog.Error("Failed to load message recipient", "recipient_id", form.RecipientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message.")
		return
	}
	if recipient == nil {
		writeError(w, http.StatusNotFound, "Recipient not found.")
		return
	}

	msg := &models.Message{
		SenderID:    user.ID,
		RecipientID: form.RecipientID,
		Content:     form.Content,
	}
	if form.ProjectID != "" {
		msg.ProjectID = &form.ProjectID
	}

	if err := db.CreateMessage(msg); err != nil {
		slog.Error("Failed to create message", "sender_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message.")
		return
	}

	h.Notifier.Publish("message.sent", map[string]any{
		"message_id": msg.ID, "sender_id": user.ID, "recipient_id": form.RecipientID,
	})
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandlers) listMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	messages, err := db.ListMessagesForUser(user.ID, 50)
	if err != nil {
		slog.Error("Failed to list messages", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list messages.")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// MarkMessageReadHandler marks one received message as read.
// POST /api/messages/read?id=...
func (h *MessageHandlers) MarkMessageReadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing message id.")
		return
	}

	if err := db.MarkMessageRead(id, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark message read.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
