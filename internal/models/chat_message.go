package models

import "time"

// ChatMessage is one chat line. Rows are soft-deleted and never removed.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Content   string    `json:"content"`
	IsPinned  bool      `json:"is_pinned"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// ModerationAction is an administrator action on a chat message.
type ModerationAction string

const (
	ActionPin    ModerationAction = "pin"
	ActionUnpin  ModerationAction = "unpin"
	ActionDelete ModerationAction = "delete"
)

// Valid reports whether a is a known moderation action.
func (a ModerationAction) Valid() bool {
	switch a {
	case ActionPin, ActionUnpin, ActionDelete:
		return true
	}
	return false
}
