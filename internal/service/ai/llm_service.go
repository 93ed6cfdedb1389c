package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/tutor-chat/backend/internal/config"
	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/history"
)

const defaultHandoffTimeout = 2 * time.Second

// ProviderFactory builds a provider from settings.
type ProviderFactory func(ctx context.Context, s llm.Settings) (llm.Provider, error)

// Option customises a Service.
type Option func(*Service)

// WithProviderFactory replaces llm.NewProvider.
func WithProviderFactory(factory ProviderFactory) Option {
	return func(s *Service) {
		s.factory = factory
	}
}

// Service is the chat streaming facade used by the HTTP and WebSocket handlers.
type Service struct {
	prompts  *PersonaPromptManager
	registry *Registry
	demo     *DemoResponder
	window   history.Window
	handoff  time.Duration
	factory  ProviderFactory

	mu        sync.Mutex
	settings  llm.Settings
	provider  llm.Provider
	forceDemo bool
	demoMode  bool

	flightMu sync.Mutex
	flight   *flight
}

type flight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ConfigUpdate carries the fields UpdateConfig may change; nil means keep.
type ConfigUpdate struct {
	APIKey          *string  `json:"apiKey,omitempty"`
	ModelName       *string  `json:"modelName,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
	IsDemoMode      *bool    `json:"isDemoMode,omitempty"`
}

// Status summarises the facade for introspection.
type Status struct {
	DemoMode   bool                 `json:"demoMode"`
	Provider   string               `json:"provider"`
	Model      string               `json:"model"`
	Sessions   int                  `json:"sessions"`
	Streaming  bool                 `json:"streaming"`
	Generation llm.GenerationConfig `json:"generation"`
}

// NewService creates the facade and starts the session sweep.
func NewService(ctx context.Context, prompts *PersonaPromptManager, aiCfg config.AIConfig, chatCfg config.ChatConfig, opts ...Option) (*Service, error) {
	if prompts == nil {
		return nil, errors.New("persona prompt manager is required")
	}

	s := &Service{
		prompts:   prompts,
		registry:  NewRegistry(chatCfg.SessionIdleTimeout, chatCfg.SessionSweepInterval, prompts.FallbackPrompt),
		demo:      &DemoResponder{CharDelay: chatCfg.DemoCharDelay, ResponseDelay: chatCfg.DemoResponseDelay},
		window:    chatCfg.Window(),
		handoff:   chatCfg.StreamHandoffTimeout,
		factory:   llm.NewProvider,
		settings:  aiCfg.Settings(chatCfg),
		forceDemo: aiCfg.DemoMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.handoff <= 0 {
		s.handoff = defaultHandoffTimeout
	}

	s.provider, s.demoMode = s.buildProvider(ctx, s.settings, s.forceDemo)
	s.registry.Start()
	return s, nil
}

func hasCredentials(settings llm.Settings) bool {
	if settings.APIKey == config.DemoModeKey {
		return false
	}
	return settings.APIKey != "" || (settings.AccessKey != "" && settings.SecretKey != "")
}

func (s *Service) buildProvider(ctx context.Context, settings llm.Settings, forceDemo bool) (llm.Provider, bool) {
	if forceDemo || !hasCredentials(settings) {
		log.Printf("[ai] running in demo mode")
		return nil, true
	}

	provider, err := s.factory(ctx, settings)
	if err != nil {
		log.Printf("[ai] failed to initialize %s provider, falling back to demo mode: %v", settings.Provider, err)
		return nil, true
	}
	log.Printf("[ai] using provider=%s model=%s", provider.Name(), settings.Model)
	return provider, false
}

func (s *Service) current() (llm.Provider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider, s.demoMode
}

// Registry exposes the session registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Prompts exposes the persona prompt manager.
func (s *Service) Prompts() *PersonaPromptManager {
	return s.prompts
}

// GenerateContent answers a single prompt without session state.
func (s *Service) GenerateContent(ctx context.Context, prompt string) (string, error) {
	provider, demo := s.current()
	if demo {
		return s.demo.Generate(ctx, prompt)
	}

	text, err := provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	log.Printf("[ai] generated content length=%d", len(text))
	return text, nil
}

// CancelStream cancels the in-flight stream, if any.
func (s *Service) CancelStream() {
	s.flightMu.Lock()
	f := s.flight
	s.flightMu.Unlock()

	if f != nil {
		log.Printf("[stream] cancelling ongoing stream")
		f.cancel()
	}
}

// Streaming reports whether a stream is in flight.
func (s *Service) Streaming() bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	return s.flight != nil
}

// UpdateConfig applies the non-nil fields. Any effective change rebuilds the
// provider and drops every session.
func (s *Service) UpdateConfig(ctx context.Context, update ConfigUpdate) error {
	if update.Temperature != nil && (*update.Temperature < 0 || *update.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidConfig)
	}
	if update.MaxOutputTokens != nil && *update.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: maxOutputTokens must be positive", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	forceDemo := s.forceDemo
	changed := false

	if update.APIKey != nil && *update.APIKey != next.APIKey {
		next.APIKey = *update.APIKey
		changed = true
	}
	if update.ModelName != nil && *update.ModelName != next.Model {
		next.Model = *update.ModelName
		changed = true
	}
	if update.MaxOutputTokens != nil && *update.MaxOutputTokens != next.Generation.MaxOutputTokens {
		next.Generation.MaxOutputTokens = *update.MaxOutputTokens
		changed = true
	}
	if update.Temperature != nil && *update.Temperature != next.Generation.Temperature {
		next.Generation.Temperature = *update.Temperature
		changed = true
	}
	if update.IsDemoMode != nil && *update.IsDemoMode != forceDemo {
		forceDemo = *update.IsDemoMode
		changed = true
	}

	if !changed {
		return nil
	}

	s.settings = next
	s.forceDemo = forceDemo
	s.provider, s.demoMode = s.buildProvider(ctx, next, forceDemo)
	s.registry.Clear()
	log.Printf("[config] AI configuration updated, demo=%t model=%s", s.demoMode, next.Model)
	return nil
}

// Status reports the facade state.
func (s *Service) Status() Status {
	s.mu.Lock()
	st := Status{
		DemoMode:   s.demoMode,
		Provider:   s.settings.Provider,
		Model:      s.settings.Model,
		Generation: s.settings.Generation,
	}
	if s.provider != nil {
		st.Provider = s.provider.Name()
	}
	s.mu.Unlock()

	st.Sessions = s.registry.Len()
	st.Streaming = s.Streaming()
	return st
}

// Close cancels any stream and stops the session sweep.
func (s *Service) Close() {
	s.CancelStream()
	s.registry.Close()
}
