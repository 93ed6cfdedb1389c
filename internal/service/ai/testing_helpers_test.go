package ai

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/tutor-chat/backend/internal/config"
	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
	"github.com/zhouzirui/tutor-chat/backend/internal/llm/llmtest"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
)

func testChatConfig() config.ChatConfig {
	cfg := config.DefaultChatConfig()
	cfg.DemoCharDelay = 0
	cfg.DemoResponseDelay = 0
	cfg.StreamHandoffTimeout = time.Second
	return cfg
}

func newTestPrompts() *PersonaPromptManager {
	return NewPersonaPromptManager(persona.NewMemoryStore(persona.Seed()))
}

func newDemoService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), newTestPrompts(), config.AIConfig{DemoMode: true}, testChatConfig())
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func newProviderService(t *testing.T, provider *llmtest.Provider) *Service {
	t.Helper()
	factory := func(context.Context, llm.Settings) (llm.Provider, error) {
		return provider, nil
	}
	svc, err := NewService(context.Background(), newTestPrompts(), config.AIConfig{APIKey: "test-key", Model: "test-model"}, testChatConfig(), WithProviderFactory(factory))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// recorder captures callback events in order.
type recorder struct {
	mu        sync.Mutex
	starts    int
	tokens    []string
	completes []string
	errs      []error
}

func (r *recorder) callbacks() StreamCallbacks {
	return StreamCallbacks{
		OnStart: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.starts++
		},
		OnToken: func(token string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tokens = append(r.tokens, token)
		},
		OnComplete: func(full string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, full)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for _, tok := range r.tokens {
		out += tok
	}
	return out
}
