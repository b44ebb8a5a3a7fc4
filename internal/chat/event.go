package chat

import "github.com/aura-webinar/portal/internal/models"

// ChangeKind distinguishes new messages from mutations of existing ones.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
)

// Change is a message-change notification.
type Change struct {
	Kind    ChangeKind         `json:"kind"`
	Message models.ChatMessage `json:"message"`
}

// Websocket event names for chat changes.
const (
	EventMessage = "chat_message"
	EventUpdate  = "chat_update"
)

// Event returns the websocket event name for the change.
func (c Change) Event() string {
	if c.Kind == ChangeInsert {
		return EventMessage
	}
	return EventUpdate
}
