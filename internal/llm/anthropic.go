package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client   anthropic.Client
	settings Settings
}

func newAnthropicProvider(s Settings) (*AnthropicProvider, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic needs an API key", ErrMissingCredentials)
	}
	if s.Model == "" {
		s.Model = defaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), settings: s}, nil
}

// Name identifies the backend.
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// StartChat opens a conversation seeded with systemPrompt.
func (p *AnthropicProvider) StartChat(_ context.Context, systemPrompt string) (Conversation, error) {
	if err := checkSystemPrompt(p.settings, systemPrompt); err != nil {
		return nil, err
	}
	return &anthropicConversation{
		provider: p,
		log:      newTurnLog(systemPrompt, p.settings.Window),
	}, nil
}

// Generate sends a single user prompt.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	params := p.params("", []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("API error: %w", err))
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func (p *AnthropicProvider) params(systemPrompt string, messages []anthropic.MessageParam) anthropic.MessageNewParams {
	maxTokens := int64(p.settings.Generation.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = int64(DefaultGenerationConfig().MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.settings.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if t := p.settings.Generation.Temperature; t > 0 {
		params.Temperature = anthropic.Float(float64(t))
	}
	if topP := p.settings.Generation.TopP; topP > 0 {
		params.TopP = anthropic.Float(float64(topP))
	}
	if topK := p.settings.Generation.TopK; topK > 0 {
		params.TopK = anthropic.Int(int64(topK))
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	return params
}

type anthropicConversation struct {
	provider *AnthropicProvider
	log      *turnLog
}

func (c *anthropicConversation) SendStream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	turns := c.log.replay()
	messages := make([]anthropic.MessageParam, 0, len(turns)+1)
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		case chat.RoleModel:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	stream := c.provider.client.Messages.NewStreaming(ctx, c.provider.params(c.log.systemPrompt, messages))

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer stream.Close()
		defer writer.Close()

		var reply strings.Builder
		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" || event.Delta.Type != "text_delta" {
				continue
			}
			reply.WriteString(event.Delta.Text)
			if closed := writer.Send(schema.AssistantMessage(event.Delta.Text, nil), nil); closed {
				return
			}
		}
		if err := stream.Err(); err != nil {
			writer.Send(nil, classify(fmt.Errorf("API error: %w", err)))
			return
		}
		c.log.commit(text, reply.String())
	}()
	return reader, nil
}
