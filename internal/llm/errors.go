package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContextLimit tags provider failures caused by an overfull context window.
	ErrContextLimit = errors.New("context window exceeded")
	// ErrSystemPromptRejected is returned by StartChat when the system prompt is refused.
	ErrSystemPromptRejected = errors.New("system prompt rejected")
	// ErrMissingCredentials is returned when a backend has no usable key.
	ErrMissingCredentials = errors.New("missing AI credentials")
)

var contextLimitMarkers = []string{
	"context length",
	"context_length_exceeded",
	"maximum context",
	"token limit",
	"prompt is too long",
}

// IsContextLimit reports whether err means the request overflowed the
// model's context window.
func IsContextLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextLimit) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func classify(err error) error {
	if err == nil || errors.Is(err, ErrContextLimit) {
		return err
	}
	if IsContextLimit(err) {
		return fmt.Errorf("%w: %w", ErrContextLimit, err)
	}
	return err
}
