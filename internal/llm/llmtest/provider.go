// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
)

// Script describes how one SendStream call behaves.
type Script struct {
	Chunks []string
	// Err is delivered after Chunks.
	Err error
	// SendErr fails SendStream before any stream is returned.
	SendErr error
	// Block holds the stream open after Chunks until ctx is done.
	Block bool
	// Started is closed once every chunk has been queued, when non-nil.
	Started chan struct{}
}

// Provider replays Scripts in order; the last one repeats.
type Provider struct {
	mu            sync.Mutex
	scripts       []Script
	calls         int
	systemPrompts []string
	conversations []*Conversation

	// StartErr, when set, decides whether StartChat fails for a prompt.
	StartErr func(systemPrompt string) error

	GenerateReply string
	GenerateErr   error
	prompts       []string
}

// New returns a Provider that answers with the given scripts.
func New(scripts ...Script) *Provider {
	return &Provider{scripts: scripts}
}

// Name identifies the backend.
func (p *Provider) Name() string {
	return "scripted"
}

// StartChat records the prompt and returns a new Conversation.
func (p *Provider) StartChat(_ context.Context, systemPrompt string) (llm.Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.systemPrompts = append(p.systemPrompts, systemPrompt)
	if p.StartErr != nil {
		if err := p.StartErr(systemPrompt); err != nil {
			return nil, err
		}
	}
	conv := &Conversation{provider: p, SystemPrompt: systemPrompt}
	p.conversations = append(p.conversations, conv)
	return conv, nil
}

// Generate returns GenerateReply or GenerateErr.
func (p *Provider) Generate(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if p.GenerateErr != nil {
		return "", p.GenerateErr
	}
	return p.GenerateReply, nil
}

// SystemPrompts lists every prompt StartChat was called with.
func (p *Provider) SystemPrompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.systemPrompts...)
}

// Conversations lists every conversation created so far.
func (p *Provider) Conversations() []*Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Conversation(nil), p.conversations...)
}

// Prompts lists every Generate prompt.
func (p *Provider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

func (p *Provider) next() Script {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.scripts) == 0 {
		return Script{}
	}
	idx := p.calls
	if idx >= len(p.scripts) {
		idx = len(p.scripts) - 1
	}
	p.calls++
	return p.scripts[idx]
}

// Conversation is a scripted llm.Conversation.
type Conversation struct {
	provider     *Provider
	SystemPrompt string

	mu   sync.Mutex
	sent []string
}

// Sent lists the texts passed to SendStream.
func (c *Conversation) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// SendStream plays the provider's next Script.
func (c *Conversation) SendStream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	c.mu.Lock()
	c.sent = append(c.sent, text)
	c.mu.Unlock()

	script := c.provider.next()
	if script.SendErr != nil {
		return nil, script.SendErr
	}

	reader, writer := schema.Pipe[*schema.Message](len(script.Chunks) + 1)
	go func() {
		defer writer.Close()
		for _, chunk := range script.Chunks {
			if closed := writer.Send(schema.AssistantMessage(chunk, nil), nil); closed {
				return
			}
		}
		if script.Started != nil {
			select {
			case <-script.Started:
			default:
				close(script.Started)
			}
		}
		if script.Block {
			<-ctx.Done()
			writer.Send(nil, ctx.Err())
			return
		}
		if script.Err != nil {
			writer.Send(nil, script.Err)
		}
	}()
	return reader, nil
}
