package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrNoUserMessage is returned when the history holds no user turn to answer.
	ErrNoUserMessage = errors.New("no user message found")
	// ErrInvalidConfig rejects out-of-range configuration updates.
	ErrInvalidConfig = errors.New("invalid AI configuration")
)

// SessionCreationError reports that neither the persona prompt nor its
// fallback could seed a chat session.
type SessionCreationError struct {
	SessionID string
	PersonaID string
	// Initial is the failure with the full system prompt.
	Initial error
	// Err is the failure with the fallback prompt.
	Err error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create chat session %s for persona %s: %v (fallback prompt: %v)", e.SessionID, e.PersonaID, e.Initial, e.Err)
}

func (e *SessionCreationError) Unwrap() []error {
	return []error{e.Initial, e.Err}
}
