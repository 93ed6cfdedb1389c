package chat

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ParseRole normalises a role coming from clients. The web UI labels model
// turns "assistant".
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return RoleUser, true
	case "model", "assistant":
		return RoleModel, true
	default:
		return "", false
	}
}

// Message is one turn of a conversation. Transcript entries carry an ID,
// the owning chat and a timestamp; turns built in memory may leave them zero.
type Message struct {
	ID        string    `json:"id,omitempty"`
	ChatID    string    `json:"chatId,omitempty"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// UserMessage builds a user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// ModelMessage builds a model turn.
func ModelMessage(text string) Message {
	return Message{Role: RoleModel, Text: text}
}

// LastUserMessage returns the most recent user turn, if any.
func LastUserMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i], true
		}
	}
	return Message{}, false
}
