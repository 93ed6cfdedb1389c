package ai

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

// StreamChatWithHistory streams the model's reply to the last user message
// in messages over the session sessionID.
//
// Starting a stream cancels the previous one. A cancelled stream returns the
// text received so far with a nil error and fires no terminal callback.
func (s *Service) StreamChatWithHistory(ctx context.Context, sessionID string, messages []chat.Message, systemPrompt, personaID string, cb StreamCallbacks) (string, error) {
	ctx, end := s.beginFlight(ctx)
	defer end()

	provider, demo := s.current()
	if demo {
		last, ok := chat.LastUserMessage(messages)
		if !ok {
			cb.fail(ErrNoUserMessage)
			return "", ErrNoUserMessage
		}
		return s.demo.Stream(ctx, last.Text, cb), nil
	}

	conv, err := s.registry.Resolve(ctx, provider, sessionID, personaID, systemPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil
		}
		log.Printf("[stream] session=%s unavailable: %v", sessionID, err)
		cb.fail(err)
		return "", err
	}

	pruned := s.window.Apply(messages, systemPrompt)
	last, ok := chat.LastUserMessage(pruned)
	if !ok {
		cb.fail(ErrNoUserMessage)
		return "", ErrNoUserMessage
	}

	cb.start()

	full, cancelled, err := relay(ctx, conv, last.Text, cb)
	if err != nil && !cancelled && llm.IsContextLimit(err) {
		log.Printf("[stream] context limit hit for session=%s, recreating session", sessionID)
		s.registry.Invalidate(sessionID)

		conv, err = s.registry.Resolve(ctx, provider, sessionID, personaID, systemPrompt)
		if err == nil {
			full, cancelled, err = relay(ctx, conv, last.Text, cb)
		} else if ctx.Err() != nil {
			cancelled = true
		}
	}

	switch {
	case cancelled:
		log.Printf("[stream] session=%s cancelled after %d bytes", sessionID, len(full))
		return full, nil
	case err != nil:
		log.Printf("[stream] session=%s failed: %v", sessionID, err)
		cb.fail(err)
		s.registry.Invalidate(sessionID)
		return "", err
	default:
		cb.complete(full)
		s.registry.Touch(sessionID)
		return full, nil
	}
}

// relay pumps one reply into cb. The bool reports that ctx ended the stream.
func relay(ctx context.Context, conv llm.Conversation, text string, cb StreamCallbacks) (string, bool, error) {
	sr, err := conv.SendStream(ctx, text)
	if err != nil {
		return "", ctx.Err() != nil, err
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), ctx.Err() != nil, nil
		}
		if err != nil {
			return sb.String(), ctx.Err() != nil, err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		sb.WriteString(chunk.Content)
		if ctx.Err() != nil {
			return sb.String(), true, nil
		}
		cb.token(chunk.Content)
	}
}

// beginFlight cancels the previous stream, waits for it to unwind and
// registers a new one. The returned func must be called when the stream ends.
func (s *Service) beginFlight(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	f := &flight{cancel: cancel, done: make(chan struct{})}

	s.flightMu.Lock()
	prev := s.flight
	s.flight = f
	s.flightMu.Unlock()

	if prev != nil {
		prev.cancel()
		timer := time.NewTimer(s.handoff)
		select {
		case <-prev.done:
		case <-timer.C:
			log.Printf("[stream] previous stream did not stop within %s", s.handoff)
		}
		timer.Stop()
	}

	return ctx, func() {
		s.flightMu.Lock()
		if s.flight == f {
			s.flight = nil
		}
		s.flightMu.Unlock()
		cancel()
		close(f.done)
	}
}
