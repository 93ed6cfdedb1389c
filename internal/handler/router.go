package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	aiHandler "github.com/zhouzirui/tutor-chat/backend/internal/handler/ai"
	"github.com/zhouzirui/tutor-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/handler/persona"
	"github.com/zhouzirui/tutor-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/tutor-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/tutor-chat/backend/internal/middleware"
	personaModel "github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/tutor"
)

// Deps are the services the router exposes.
type Deps struct {
	Personas personaModel.Store
	Chats    *chatService.Service
	AI       *aiService.Service
	Tutor    *tutor.Tutor
	// Limiter throttles the generation endpoints; nil disables it.
	Limiter *middlewarePkg.RateLimiter
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chats, deps.Personas, deps.AI.Registry())
	aiHandlers := aiHandler.New(deps.AI)
	streamHandler := stream.New(deps.AI, deps.Tutor, deps.Chats, deps.Personas)
	wsHandler := ws.New(deps.AI, deps.Tutor, deps.Chats, deps.Personas)

	limited := func(next http.Handler) http.Handler { return next }
	if deps.Limiter.Enabled() {
		limited = deps.Limiter.Middleware
	}

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		aiHandlers.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Post("/stream/cancel", streamHandler.HandleCancel)

		api.Group(func(gen chi.Router) {
			gen.Use(limited)
			gen.Get("/stream/{chatID}", streamHandler.HandleStream)
			gen.Post("/generate", aiHandlers.HandleGenerate)
		})
	})

	return r
}
