package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/tutor-chat/backend/internal/config"
	"github.com/zhouzirui/tutor-chat/backend/internal/handler"
	"github.com/zhouzirui/tutor-chat/backend/internal/middleware"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/tutor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] warning: failed to load .env file: %v", err)
		log.Println("[config] continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personas := persona.Seed()
	if cfg.Chat.PersonasFile != "" {
		custom, err := persona.LoadFile(cfg.Chat.PersonasFile)
		if err != nil {
			log.Fatalf("failed to load personas: %v", err)
		}
		personas = persona.Merge(personas, custom)
		log.Printf("[config] loaded %d custom personas from %s", len(custom), cfg.Chat.PersonasFile)
	}
	personaStore := persona.NewMemoryStore(personas)
	chatService := chat.NewService()

	aiService, err := ai.NewService(ctx, ai.NewPersonaPromptManager(personaStore), cfg.AI, cfg.Chat)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	defer aiService.Close()

	if status := aiService.Status(); status.DemoMode {
		log.Println("[ai] running in demo mode, set AI_API_KEY or ARK_API_KEY for real responses")
	} else {
		log.Printf("[ai] provider=%s model=%s ready", status.Provider, status.Model)
	}

	router := handler.NewRouter(handler.Deps{
		Personas: personaStore,
		Chats:    chatService,
		AI:       aiService,
		Tutor:    tutor.New(aiService, chatService, personaStore),
		Limiter:  middleware.NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateBurst),
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Tutor chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
