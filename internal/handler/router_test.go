package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/tutor-chat/backend/internal/config"
	middlewarePkg "github.com/zhouzirui/tutor-chat/backend/internal/middleware"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/tutor"
)

func newTestRouter(t *testing.T, limiter *middlewarePkg.RateLimiter) http.Handler {
	t.Helper()

	store := persona.NewMemoryStore(persona.Seed())
	chatCfg := config.DefaultChatConfig()
	chatCfg.DemoCharDelay = 0
	chatCfg.DemoResponseDelay = 0

	aiSvc, err := aiService.NewService(context.Background(), aiService.NewPersonaPromptManager(store), config.AIConfig{DemoMode: true}, chatCfg)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	t.Cleanup(aiSvc.Close)

	chats := chatService.NewService()
	return NewRouter(Deps{
		Personas: store,
		Chats:    chats,
		AI:       aiSvc,
		Tutor:    tutor.New(aiSvc, chats, store),
		Limiter:  limiter,
	})
}

func TestRouterChatFlow(t *testing.T) {
	r := newTestRouter(t, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"personaId":"writing"}`)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var created chat.Chat
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/stream/"+created.ID+"?message=Hello", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("event: end")) {
		t.Fatalf("expected end event in %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}
}

func TestRouterRateLimitsGeneration(t *testing.T) {
	r := newTestRouter(t, middlewarePkg.NewRateLimiter(0.001, 1))

	generate := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(`{"prompt":"hi"}`))
		req.RemoteAddr = "192.0.2.1:1234"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := generate(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := generate(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status should not be limited, got %d", resp.Code)
	}
}
