// Package llm is the boundary to the hosted generative model. A Provider
// opens Conversations; a Conversation keeps its own turns and streams one
// reply per user message.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/tutor-chat/backend/internal/service/history"
)

const (
	ProviderArk       = "ark"
	ProviderAnthropic = "anthropic"
)

// GenerationConfig holds the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float32 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig mirrors the web client's defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

// Settings selects and configures a provider backend.
type Settings struct {
	Provider   string
	APIKey     string
	AccessKey  string
	SecretKey  string
	Model      string
	BaseURL    string
	Region     string
	Generation GenerationConfig
	// Window bounds the turns a conversation replays on every request.
	Window history.Window
	// MaxSystemPromptTokens rejects oversized system prompts when > 0.
	MaxSystemPromptTokens int
}

// Provider opens conversations against one configured model.
type Provider interface {
	Name() string
	StartChat(ctx context.Context, systemPrompt string) (Conversation, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Conversation is a stateful chat seeded with a system prompt.
//
// SendStream appends text as the next user turn and streams the reply. The
// turn pair is committed only when the stream reaches io.EOF.
type Conversation interface {
	SendStream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error)
}

// NewProvider builds the backend named by s.Provider.
func NewProvider(ctx context.Context, s Settings) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderArk:
		return newArkProvider(ctx, s)
	case ProviderAnthropic:
		return newAnthropicProvider(s)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", s.Provider)
	}
}

func checkSystemPrompt(s Settings, systemPrompt string) error {
	if s.MaxSystemPromptTokens <= 0 {
		return nil
	}
	if n := history.EstimateTokens(systemPrompt); n > s.MaxSystemPromptTokens {
		return fmt.Errorf("%w: %d tokens exceeds %d", ErrSystemPromptRejected, n, s.MaxSystemPromptTokens)
	}
	return nil
}
