// Package ws serves tutor chats over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/tutor"
	"github.com/zhouzirui/tutor-chat/backend/pkg/utils"
)

const (
	readWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// Inbound message types.
const (
	TypeText    = "text"
	TypeCancel  = "cancel"
	TypePersona = "persona"
)

// Outbound message types.
const (
	TypeConnected = "connected"
	TypeStart     = "start"
	TypeDelta     = "delta"
	TypeMessage   = "message"
	TypeCancelled = "cancelled"
	TypeError     = "error"
)

// Handler WebSocket聊天处理器
type Handler struct {
	aiSvc    *aiService.Service
	tutor    *tutor.Tutor
	chatSvc  *chatService.Service
	personas persona.Store
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(aiSvc *aiService.Service, t *tutor.Tutor, chatSvc *chatService.Service, personas persona.Store) *Handler {
	return &Handler{
		aiSvc:    aiSvc,
		tutor:    t,
		chatSvc:  chatSvc,
		personas: personas,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{chatID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// PersonaMessage 切换导师
type PersonaMessage struct {
	PersonaID string `json:"personaId"`
}

// connection holds per-socket state. Replies run on their own goroutine so
// the read loop can still receive cancel messages.
type connection struct {
	conn   *websocket.Conn
	chatID string

	writeMu sync.Mutex

	mu      sync.Mutex
	persona persona.Persona

	wg sync.WaitGroup
}

func (c *connection) currentPersona() persona.Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persona
}

func (c *connection) setPersona(p persona.Persona) {
	c.mu.Lock()
	c.persona = p
	c.mu.Unlock()
}

func (c *connection) send(msgType string, data any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.chatID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (c *connection) sendError(message string) {
	c.send(TypeError, map[string]string{"message": message})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	chatRecord, err := h.chatSvc.GetChat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, chatService.ErrChatNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
		} else {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	p, ok := h.personas.FindByID(chatRecord.PersonaID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for chat: %s", chatID)

	c := &connection{conn: conn, chatID: chatID, persona: p}

	ctx, cancel := context.WithCancel(r.Context())
	defer c.wg.Wait()
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	go h.pingLoop(ctx, c)

	c.send(TypeConnected, map[string]any{
		"persona":     p.ID,
		"personaName": p.Name,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		if msg.SessionID != "" && msg.SessionID != chatID {
			c.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, c, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *connection, msg *inboundMessage) {
	switch msg.Type {
	case TypeText:
		h.handleTextMessage(ctx, c, msg.Data)
	case TypeCancel:
		h.aiSvc.CancelStream()
	case TypePersona:
		h.handlePersonaMessage(c, msg.Data)
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) handleTextMessage(ctx context.Context, c *connection, raw json.RawMessage) {
	var payload TextMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("invalid text payload")
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		c.sendError("text is required")
		return
	}

	p := c.currentPersona()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		h.reply(ctx, c, p, text)
	}()
}

func (h *Handler) handlePersonaMessage(c *connection, raw json.RawMessage) {
	var payload PersonaMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("invalid persona payload")
		return
	}
	p, ok := h.personas.FindByID(payload.PersonaID)
	if !ok {
		c.sendError("persona not found: " + payload.PersonaID)
		return
	}
	c.setPersona(p)
	c.send(TypePersona, map[string]any{
		"persona":     p.ID,
		"personaName": p.Name,
	})
}

func (h *Handler) reply(ctx context.Context, c *connection, p persona.Persona, text string) {
	cb := aiService.StreamCallbacks{
		OnStart: func() {
			c.send(TypeStart, map[string]any{"persona": p.ID})
		},
		OnToken: func(token string) {
			c.send(TypeDelta, map[string]any{"content": token})
		},
	}

	out, err := h.tutor.Reply(ctx, c.chatID, p.ID, text, cb)
	switch {
	case err != nil:
		log.Printf("[websocket] reply failed chat=%s: %v", c.chatID, err)
		c.sendError("AI generation failed: " + err.Error())
	case out.Cancelled:
		c.send(TypeCancelled, map[string]any{
			"content":   out.Text,
			"messageId": out.Reply.ID,
		})
	default:
		c.send(TypeMessage, map[string]any{
			"content":   out.Text,
			"messageId": out.Reply.ID,
		})
	}
}

func (h *Handler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
