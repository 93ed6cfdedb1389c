// Package tutor answers a learner's message inside a stored chat: it records
// the user turn, streams the persona's reply and records the reply.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
)

// ErrPersonaNotFound is returned when the chat's persona is unknown.
var ErrPersonaNotFound = errors.New("persona not found")

// Outcome describes how a reply ended.
type Outcome struct {
	Chat    chat.Chat
	Persona persona.Persona
	// Reply is the stored model turn; zero when nothing was produced or a
	// newer user turn superseded it.
	Reply     chat.Message
	Text      string
	Cancelled bool
}

// Tutor ties the transcript store to the streaming AI service.
type Tutor struct {
	ai       *aiService.Service
	chats    *chatService.Service
	personas persona.Store
}

// New creates a Tutor.
func New(ai *aiService.Service, chats *chatService.Service, personas persona.Store) *Tutor {
	return &Tutor{ai: ai, chats: chats, personas: personas}
}

// Reply streams an answer to userText in chatID. personaID overrides the
// chat's persona when non-empty.
func (t *Tutor) Reply(ctx context.Context, chatID, personaID, userText string, cb aiService.StreamCallbacks) (Outcome, error) {
	c, err := t.chats.GetChat(ctx, chatID)
	if err != nil {
		return Outcome{}, err
	}
	if personaID == "" {
		personaID = c.PersonaID
	}
	p, ok := t.personas.FindByID(personaID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	messages, err := t.chats.LoadTranscript(ctx, chatID)
	if err != nil {
		return Outcome{}, err
	}

	// The client may already have stored the message over REST.
	if !endsWithUserMessage(messages, userText) {
		msg, err := t.chats.AppendMessage(ctx, chatID, chat.RoleUser, userText)
		if err != nil {
			return Outcome{}, err
		}
		messages = append(messages, msg)
	}
	answering := messages[len(messages)-1].ID

	completed := false
	onComplete := cb.OnComplete
	cb.OnComplete = func(full string) {
		completed = true
		if onComplete != nil {
			onComplete(full)
		}
	}

	systemPrompt := t.ai.Prompts().BuildSystemPrompt(&p)
	text, err := t.ai.StreamChatWithHistory(ctx, chatID, messages, systemPrompt, p.ID, cb)

	out := Outcome{Chat: c, Persona: p, Text: text, Cancelled: err == nil && !completed}
	if err != nil {
		return out, err
	}

	if text != "" {
		// A newer user turn may have superseded this reply.
		reply, err := t.chats.AppendReply(context.WithoutCancel(ctx), chatID, answering, text)
		switch {
		case errors.Is(err, chatService.ErrStaleReply):
			log.Printf("[stream] dropping superseded reply for chat=%s (%d bytes)", chatID, len(text))
		case err != nil:
			log.Printf("[stream] failed to save reply for chat=%s: %v", chatID, err)
		default:
			out.Reply = reply
		}
	}
	return out, nil
}

func endsWithUserMessage(messages []chat.Message, text string) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == chat.RoleUser && last.Text == text
}
