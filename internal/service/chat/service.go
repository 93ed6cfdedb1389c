package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrEmptyMessage    = errors.New("message text is required")
	ErrEmptyName       = errors.New("chat name is required")
	// ErrStaleReply rejects a reply whose user turn is no longer the last message.
	ErrStaleReply = errors.New("transcript moved past the answered message")
)

// Service keeps named chat transcripts in memory.
type Service struct {
	mu       sync.RWMutex
	chats    map[string]chat.Chat
	messages map[string][]chat.Message
	now      func() time.Time
}

// NewService bootstraps the in-memory transcript store.
func NewService() *Service {
	return &Service{
		chats:    make(map[string]chat.Chat),
		messages: make(map[string][]chat.Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateChat opens an empty transcript bound to a persona. An empty name
// defaults to "Chat <timestamp>".
func (s *Service) CreateChat(_ context.Context, personaID, name string) (chat.Chat, error) {
	if personaID == "" {
		return chat.Chat{}, ErrPersonaRequired
	}

	now := s.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Chat %s", now.Format("2006-01-02 15:04:05"))
	}

	c := chat.Chat{
		ID:        uuid.NewString(),
		Name:      name,
		PersonaID: personaID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.chats[c.ID] = c
	s.messages[c.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return c, nil
}

// GetChat retrieves a chat by identifier.
func (s *Service) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, ErrChatNotFound
	}
	return c, nil
}

// ListChats returns chats oldest first, optionally filtered by persona.
func (s *Service) ListChats(_ context.Context, personaID string) []chat.Chat {
	s.mu.RLock()
	out := make([]chat.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		if personaID != "" && c.PersonaID != personaID {
			continue
		}
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RenameChat changes a chat's display name.
func (s *Service) RenameChat(_ context.Context, chatID, name string) (chat.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.Chat{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, ErrChatNotFound
	}
	c.Name = name
	c.UpdatedAt = s.now()
	s.chats[chatID] = c
	return c, nil
}

// DeleteChat removes a chat and its transcript.
func (s *Service) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return ErrChatNotFound
	}
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	return nil
}

// ClearAll removes every chat.
func (s *Service) ClearAll(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[string]chat.Chat)
	s.messages = make(map[string][]chat.Message)
}

// ClearChat empties a transcript but keeps the chat.
func (s *Service) ClearChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	s.messages[chatID] = make([]chat.Message, 0, 16)
	c.UpdatedAt = s.now()
	s.chats[chatID] = c
	return nil
}

// AppendMessage adds a turn to the transcript.
func (s *Service) AppendMessage(_ context.Context, chatID string, role chat.Role, text string) (chat.Message, error) {
	if role != chat.RoleUser && role != chat.RoleModel {
		return chat.Message{}, ErrInvalidRole
	}
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Message{}, ErrChatNotFound
	}

	now := s.now()
	message := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Text:      text,
		CreatedAt: now,
	}
	s.messages[chatID] = append(s.messages[chatID], message)
	c.UpdatedAt = now
	s.chats[chatID] = c
	return message, nil
}

// AppendReply stores a model turn answering replyTo. It fails with
// ErrStaleReply unless replyTo is still the last message of the chat.
func (s *Service) AppendReply(_ context.Context, chatID, replyTo, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Message{}, ErrChatNotFound
	}
	messages := s.messages[chatID]
	if len(messages) == 0 || messages[len(messages)-1].ID != replyTo {
		return chat.Message{}, ErrStaleReply
	}

	now := s.now()
	message := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      chat.RoleModel,
		Text:      text,
		CreatedAt: now,
	}
	s.messages[chatID] = append(messages, message)
	c.UpdatedAt = now
	s.chats[chatID] = c
	return message, nil
}

// UpdateMessage replaces the text of one transcript entry.
func (s *Service) UpdateMessage(_ context.Context, chatID, messageID, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Message{}, ErrChatNotFound
	}
	messages := s.messages[chatID]
	for i := range messages {
		if messages[i].ID != messageID {
			continue
		}
		messages[i].Text = text
		c.UpdatedAt = s.now()
		s.chats[chatID] = c
		return messages[i], nil
	}
	return chat.Message{}, ErrMessageNotFound
}

// LoadTranscript returns stored messages for the provided chat.
func (s *Service) LoadTranscript(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
