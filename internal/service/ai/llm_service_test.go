package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/zhouzirui/tutor-chat/backend/internal/config"
	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
	"github.com/zhouzirui/tutor-chat/backend/internal/llm/llmtest"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

func TestNewServiceDemoModeSelection(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.AIConfig
		demo bool
	}{
		{"no credential", config.AIConfig{Model: "m"}, true},
		{"demo key", config.AIConfig{APIKey: config.DemoModeKey, Model: "m"}, true},
		{"forced", config.AIConfig{APIKey: "real", Model: "m", DemoMode: true}, true},
		{"credential", config.AIConfig{APIKey: "real", Model: "m"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory := func(context.Context, llm.Settings) (llm.Provider, error) {
				return llmtest.New(), nil
			}
			svc, err := NewService(context.Background(), newTestPrompts(), tc.cfg, testChatConfig(), WithProviderFactory(factory))
			if err != nil {
				t.Fatalf("NewService err: %v", err)
			}
			defer svc.Close()

			if got := svc.Status().DemoMode; got != tc.demo {
				t.Fatalf("demo mode = %t, want %t", got, tc.demo)
			}
		})
	}
}

func TestNewServiceFallsBackToDemoWhenProviderFails(t *testing.T) {
	factory := func(context.Context, llm.Settings) (llm.Provider, error) {
		return nil, errors.New("bad region")
	}
	svc, err := NewService(context.Background(), newTestPrompts(), config.AIConfig{APIKey: "real", Model: "m"}, testChatConfig(), WithProviderFactory(factory))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	defer svc.Close()

	if !svc.Status().DemoMode {
		t.Fatal("provider failure should fall back to demo mode")
	}
}

func TestGenerateContentUsesProvider(t *testing.T) {
	provider := llmtest.New()
	provider.GenerateReply = "four"
	svc := newProviderService(t, provider)

	got, err := svc.GenerateContent(context.Background(), "2+2?")
	if err != nil || got != "four" {
		t.Fatalf("GenerateContent = %q, %v", got, err)
	}

	provider.GenerateErr = errors.New("quota")
	if _, err := svc.GenerateContent(context.Background(), "2+2?"); !errors.Is(err, provider.GenerateErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestUpdateConfigRebuildsAndClearsSessions(t *testing.T) {
	provider := llmtest.New(llmtest.Script{Chunks: []string{"hi"}})
	svc := newProviderService(t, provider)

	if _, err := svc.StreamChatWithHistory(context.Background(), "s1", []chat.Message{chat.UserMessage("Hi")}, "sys", "math", StreamCallbacks{}); err != nil {
		t.Fatalf("StreamChatWithHistory err: %v", err)
	}
	if svc.Registry().Len() != 1 {
		t.Fatal("expected a live session")
	}

	sameModel := "test-model"
	if err := svc.UpdateConfig(context.Background(), ConfigUpdate{ModelName: &sameModel}); err != nil {
		t.Fatalf("UpdateConfig err: %v", err)
	}
	if svc.Registry().Len() != 1 {
		t.Fatal("no-op update must keep sessions")
	}

	tokens := 2048
	if err := svc.UpdateConfig(context.Background(), ConfigUpdate{MaxOutputTokens: &tokens}); err != nil {
		t.Fatalf("UpdateConfig err: %v", err)
	}
	if svc.Registry().Len() != 0 {
		t.Fatal("config change must clear sessions")
	}
	if got := svc.Status().Generation.MaxOutputTokens; got != 2048 {
		t.Fatalf("max output tokens = %d", got)
	}

	demo := true
	if err := svc.UpdateConfig(context.Background(), ConfigUpdate{IsDemoMode: &demo}); err != nil {
		t.Fatalf("UpdateConfig err: %v", err)
	}
	if !svc.Status().DemoMode {
		t.Fatal("expected demo mode after update")
	}
}

func TestUpdateConfigValidates(t *testing.T) {
	svc := newDemoService(t)

	hot := float32(3)
	if err := svc.UpdateConfig(context.Background(), ConfigUpdate{Temperature: &hot}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	zero := 0
	if err := svc.UpdateConfig(context.Background(), ConfigUpdate{MaxOutputTokens: &zero}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPersonaPromptManager(t *testing.T) {
	pm := newTestPrompts()

	prompt, ok := pm.SystemPromptFor("buntheon")
	if !ok || prompt == "" {
		t.Fatal("expected buntheon prompt")
	}
	if pm.FallbackPrompt("buntheon") == prompt {
		t.Fatal("fallback prompt should differ from the full prompt")
	}
	if _, ok := pm.SystemPromptFor("missing"); ok {
		t.Fatal("unknown persona should not resolve")
	}
	if pm.FallbackPrompt("missing") != defaultFallbackPrompt {
		t.Fatal("unknown persona should use the default fallback")
	}
}
