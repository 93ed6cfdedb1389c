package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/tutor"
	"github.com/zhouzirui/tutor-chat/backend/pkg/utils"
)

// SSE event names.
const (
	EventStart     = "start"
	EventDelta     = "delta"
	EventMessage   = "message"
	EventCancelled = "cancelled"
	EventError     = "error"
	EventEnd       = "end"
)

// Handler manages streaming AI responses via Server-Sent Events
type Handler struct {
	aiService *aiService.Service
	tutor     *tutor.Tutor
	chatSvc   *chatService.Service
	personas  persona.Store
}

// New creates a new stream handler
func New(aiSvc *aiService.Service, t *tutor.Tutor, chatSvc *chatService.Service, personas persona.Store) *Handler {
	return &Handler{
		aiService: aiSvc,
		tutor:     t,
		chatSvc:   chatSvc,
		personas:  personas,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStream serves GET /stream/{chatID}?message=&personaId=.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	userMessage := r.URL.Query().Get("message")
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, chatID, userMessage, r.URL.Query().Get("personaId")); err != nil {
		log.Printf("[stream] error handling request chat=%s: %v", chatID, err)
	}
}

// HandleCancel serves POST /stream/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.aiService.CancelStream()
	w.WriteHeader(http.StatusNoContent)
}

// HandleStreamRequest streams a tutor reply for chatID. Errors found before
// the stream opens are answered as JSON; later ones as an SSE error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, chatID, userMessage, personaID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	c, err := h.chatSvc.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, chatService.ErrChatNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
		} else {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return err
	}
	if personaID == "" {
		personaID = c.PersonaID
	}
	p, ok := h.personas.FindByID(personaID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return fmt.Errorf("%w: %s", tutor.ErrPersonaNotFound, personaID)
	}

	utils.SetupSSEHeaders(w)

	cb := aiService.StreamCallbacks{
		OnStart: func() {
			h.sendSSE(w, flusher, StreamResponse{
				Event:     EventStart,
				SessionID: chatID,
				Content:   fmt.Sprintf("%s's reply:", p.Name),
			})
		},
		OnToken: func(token string) {
			h.sendSSE(w, flusher, StreamResponse{
				Event:     EventDelta,
				SessionID: chatID,
				Content:   token,
			})
		},
	}

	out, err := h.tutor.Reply(ctx, chatID, p.ID, userMessage, cb)
	switch {
	case err != nil:
		h.sendSSEError(w, flusher, chatID, fmt.Sprintf("AI generation failed: %v", err))
	case out.Cancelled:
		h.sendSSE(w, flusher, StreamResponse{
			Event:     EventCancelled,
			SessionID: chatID,
			MessageID: out.Reply.ID,
			Content:   out.Text,
		})
	default:
		h.sendSSE(w, flusher, StreamResponse{
			Event:     EventMessage,
			SessionID: chatID,
			MessageID: out.Reply.ID,
			Content:   out.Text,
		})
	}

	// Send completion signal
	h.sendSSE(w, flusher, StreamResponse{
		Event:     EventEnd,
		SessionID: chatID,
		Finished:  true,
	})

	if err != nil {
		return err
	}
	log.Printf("[stream] completed response for chat=%s, persona=%s, cancelled=%t", chatID, p.ID, out.Cancelled)
	return nil
}

// sendSSE sends a Server-Sent Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEEvent(w, flusher, response.Event, response)
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, chatID, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event:     EventError,
		SessionID: chatID,
		Error:     errorMsg,
	})
}
