package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

// EinoProvider drives any eino chat model through a system/history/query chain.
type EinoProvider struct {
	name     string
	model    model.ChatModel
	chain    compose.Runnable[map[string]any, *schema.Message]
	settings Settings
}

// NewEinoProvider wraps an eino chat model.
func NewEinoProvider(ctx context.Context, name string, chatModel model.ChatModel, s Settings) (*EinoProvider, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &EinoProvider{name: name, model: chatModel, chain: runnable, settings: s}, nil
}

func newArkProvider(ctx context.Context, s Settings) (*EinoProvider, error) {
	if s.Model == "" || (s.APIKey == "" && (s.AccessKey == "" || s.SecretKey == "")) {
		return nil, fmt.Errorf("%w: ark needs an API key or AK/SK pair plus a model", ErrMissingCredentials)
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   s.BaseURL,
		Region:    s.Region,
		APIKey:    s.APIKey,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Model:     s.Model,
	}
	if s.Generation.MaxOutputTokens > 0 {
		maxTokens := s.Generation.MaxOutputTokens
		cfg.MaxTokens = &maxTokens
	}
	if s.Generation.Temperature > 0 {
		temperature := s.Generation.Temperature
		cfg.Temperature = &temperature
	}
	if s.Generation.TopP > 0 {
		topP := s.Generation.TopP
		cfg.TopP = &topP
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return NewEinoProvider(ctx, ProviderArk, chatModel, s)
}

// Name identifies the backend.
func (p *EinoProvider) Name() string {
	return p.name
}

// StartChat opens a conversation seeded with systemPrompt.
func (p *EinoProvider) StartChat(_ context.Context, systemPrompt string) (Conversation, error) {
	if err := checkSystemPrompt(p.settings, systemPrompt); err != nil {
		return nil, err
	}
	return &einoConversation{
		chain: p.chain,
		log:   newTurnLog(systemPrompt, p.settings.Window),
	}, nil
}

// Generate runs a single prompt without conversation state.
func (p *EinoProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", classify(err)
	}
	return resp.Content, nil
}

type einoConversation struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   *turnLog
}

func (c *einoConversation) SendStream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	input := map[string]any{
		"system":  c.log.systemPrompt,
		"history": toSchemaMessages(c.log.replay()),
		"query":   text,
	}

	upstream, err := c.chain.Stream(ctx, input)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to stream chat chain output: %w", err))
	}

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer upstream.Close()
		defer writer.Close()

		var reply strings.Builder
		for {
			chunk, err := upstream.Recv()
			if errors.Is(err, io.EOF) {
				c.log.commit(text, reply.String())
				return
			}
			if err != nil {
				writer.Send(nil, classify(err))
				return
			}
			reply.WriteString(chunk.Content)
			if closed := writer.Send(chunk, nil); closed {
				return
			}
		}
	}()
	return reader, nil
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Text))
		case chat.RoleModel:
			out = append(out, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return out
}
