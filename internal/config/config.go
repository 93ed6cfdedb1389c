package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/history"
)

// DemoModeKey 作为 API Key 时强制进入演示模式。
const DemoModeKey = "demo_mode"

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Chat   ChatConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Chat: chat}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopK        *int
	TopP        *float64
	MaxTokens   *int
	DemoMode    bool
}

// HasCredentials 表示是否提供了可用的密钥。
func (c AIConfig) HasCredentials() bool {
	if c.APIKey == DemoModeKey {
		return false
	}
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// Settings 生成 llm 层使用的完整配置，未设置的采样参数使用默认值。
func (c AIConfig) Settings(chat ChatConfig) llm.Settings {
	gen := llm.DefaultGenerationConfig()
	if c.Temperature != nil {
		gen.Temperature = float32(*c.Temperature)
	}
	if c.TopK != nil {
		gen.TopK = *c.TopK
	}
	if c.TopP != nil {
		gen.TopP = float32(*c.TopP)
	}
	if c.MaxTokens != nil {
		gen.MaxOutputTokens = *c.MaxTokens
	}

	return llm.Settings{
		Provider:              c.Provider,
		APIKey:                c.APIKey,
		AccessKey:             c.AccessKey,
		SecretKey:             c.SecretKey,
		Model:                 c.Model,
		BaseURL:               c.BaseURL,
		Region:                c.Region,
		Generation:            gen,
		Window:                chat.Window(),
		MaxSystemPromptTokens: chat.MaxSystemPromptTokens,
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", llm.ProviderArk))
	if provider != llm.ProviderArk && provider != llm.ProviderAnthropic {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return AIConfig{}, fmt.Errorf("invalid AI_TEMPERATURE value %v: must be between 0 and 2", *temperature)
	}

	topK, err := parseOptionalIntEnv("AI_TOP_K")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_OUTPUT_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	demo, err := parseBoolEnv("AI_DEMO_MODE", false)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:    provider,
		Model:       getEnvOrDefault("AI_MODEL", strings.TrimSpace(os.Getenv("Model"))),
		Temperature: temperature,
		TopK:        topK,
		TopP:        topP,
		MaxTokens:   maxTokens,
		DemoMode:    demo,
	}

	switch provider {
	case llm.ProviderAnthropic:
		cfg.APIKey = getEnvOrDefault("AI_API_KEY", strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")))
		cfg.BaseURL = getEnvOrDefault("AI_BASE_URL", "")
	default:
		cfg.APIKey = getEnvOrDefault("AI_API_KEY", strings.TrimSpace(os.Getenv("ARK_API_KEY")))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.BaseURL = getEnvOrDefault("AI_BASE_URL", getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"))
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	}

	return cfg, nil
}

// ChatConfig 描述会话管理、裁剪与演示模式的参数。
type ChatConfig struct {
	TokenLimit            int
	ReserveTokens         int
	SessionIdleTimeout    time.Duration
	SessionSweepInterval  time.Duration
	DemoCharDelay         time.Duration
	DemoResponseDelay     time.Duration
	MaxSystemPromptTokens int
	StreamHandoffTimeout  time.Duration
	PersonasFile          string
	RateLimit             float64
	RateBurst             int
}

// DefaultChatConfig 返回默认的会话配置。
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		TokenLimit:           30000,
		ReserveTokens:        1000,
		SessionIdleTimeout:   60 * time.Minute,
		SessionSweepInterval: 5 * time.Minute,
		DemoCharDelay:        30 * time.Millisecond,
		DemoResponseDelay:    time.Second,
		StreamHandoffTimeout: 2 * time.Second,
		RateLimit:            2,
		RateBurst:            5,
	}
}

// Window 返回历史裁剪预算。
func (c ChatConfig) Window() history.Window {
	return history.Window{TokenLimit: c.TokenLimit, ReserveTokens: c.ReserveTokens}
}

func loadChatConfig() (ChatConfig, error) {
	cfg := DefaultChatConfig()

	ints := []struct {
		key string
		dst *int
	}{
		{"CHAT_TOKEN_LIMIT", &cfg.TokenLimit},
		{"CHAT_RESERVE_TOKENS", &cfg.ReserveTokens},
		{"CHAT_MAX_SYSTEM_PROMPT_TOKENS", &cfg.MaxSystemPromptTokens},
		{"CHAT_RATE_BURST", &cfg.RateBurst},
	}
	for _, item := range ints {
		val, err := parseOptionalIntEnv(item.key)
		if err != nil {
			return ChatConfig{}, err
		}
		if val != nil {
			*item.dst = *val
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CHAT_SESSION_IDLE_TIMEOUT", &cfg.SessionIdleTimeout},
		{"CHAT_SESSION_SWEEP_INTERVAL", &cfg.SessionSweepInterval},
		{"CHAT_DEMO_CHAR_DELAY", &cfg.DemoCharDelay},
		{"CHAT_DEMO_RESPONSE_DELAY", &cfg.DemoResponseDelay},
		{"CHAT_STREAM_HANDOFF_TIMEOUT", &cfg.StreamHandoffTimeout},
	}
	for _, item := range durations {
		val, err := parseOptionalDurationEnv(item.key)
		if err != nil {
			return ChatConfig{}, err
		}
		if val != nil {
			*item.dst = *val
		}
	}

	rate, err := parseOptionalFloatEnv("CHAT_RATE_LIMIT")
	if err != nil {
		return ChatConfig{}, err
	}
	if rate != nil {
		cfg.RateLimit = *rate
	}

	if cfg.TokenLimit <= cfg.ReserveTokens {
		return ChatConfig{}, fmt.Errorf("CHAT_TOKEN_LIMIT (%d) must exceed CHAT_RESERVE_TOKENS (%d)", cfg.TokenLimit, cfg.ReserveTokens)
	}
	if cfg.SessionSweepInterval <= 0 {
		return ChatConfig{}, fmt.Errorf("CHAT_SESSION_SWEEP_INTERVAL must be positive")
	}

	cfg.PersonasFile = strings.TrimSpace(os.Getenv("PERSONAS_FILE"))
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("invalid %s value %q: must not be negative", key, value)
	}
	return &val, nil
}
