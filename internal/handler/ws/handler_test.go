package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/tutor-chat/backend/internal/config"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/tutor"
)

type received struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func setupServer(t *testing.T) (*httptest.Server, *chatservice.Service) {
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

	chatSvc := chatservice.NewService()
	handler := New(aiSvc, tutor.New(aiSvc, chatSvc, store), chatSvc, store)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

func dial(t *testing.T, srv *httptest.Server, chatID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + chatID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(inboundMessage{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketTextReply(t *testing.T) {
	srv, chatSvc := setupServer(t)
	c, _ := chatSvc.CreateChat(context.Background(), "science", "")
	conn := dial(t, srv, c.ID)

	if msg := readMessage(t, conn); msg.Type != TypeConnected || msg.Data["persona"] != "science" {
		t.Fatalf("unexpected greeting %+v", msg)
	}

	writeMessage(t, conn, TypeText, TextMessage{Text: "Hi"})

	if msg := readMessage(t, conn); msg.Type != TypeStart {
		t.Fatalf("expected start, got %+v", msg)
	}

	var deltas strings.Builder
	for {
		msg := readMessage(t, conn)
		if msg.Type == TypeDelta {
			deltas.WriteString(msg.Data["content"].(string))
			continue
		}
		if msg.Type != TypeMessage {
			t.Fatalf("expected message, got %+v", msg)
		}
		want := aiService.DemoStreamReply("Hi")
		if msg.Data["content"] != want || deltas.String() != want {
			t.Fatalf("unexpected reply %q", msg.Data["content"])
		}
		break
	}

	transcript, _ := chatSvc.LoadTranscript(context.Background(), c.ID)
	if len(transcript) != 2 || transcript[1].Role != chat.RoleModel {
		t.Fatalf("expected stored reply, got %+v", transcript)
	}
}

func TestWebSocketPersonaSwitch(t *testing.T) {
	srv, chatSvc := setupServer(t)
	c, _ := chatSvc.CreateChat(context.Background(), "math", "")
	conn := dial(t, srv, c.ID)
	readMessage(t, conn)

	writeMessage(t, conn, TypePersona, PersonaMessage{PersonaID: "history"})
	if msg := readMessage(t, conn); msg.Type != TypePersona || msg.Data["personaName"] != "History Teacher" {
		t.Fatalf("unexpected persona ack %+v", msg)
	}

	writeMessage(t, conn, TypePersona, PersonaMessage{PersonaID: "nobody"})
	if msg := readMessage(t, conn); msg.Type != TypeError {
		t.Fatalf("expected error, got %+v", msg)
	}
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	srv, chatSvc := setupServer(t)
	c, _ := chatSvc.CreateChat(context.Background(), "math", "")
	conn := dial(t, srv, c.ID)
	readMessage(t, conn)

	writeMessage(t, conn, "audio", map[string]string{})
	if msg := readMessage(t, conn); msg.Type != TypeError {
		t.Fatalf("expected error for unsupported type, got %+v", msg)
	}

	writeMessage(t, conn, TypeText, TextMessage{Text: "   "})
	if msg := readMessage(t, conn); msg.Type != TypeError {
		t.Fatalf("expected error for empty text, got %+v", msg)
	}
}

func TestWebSocketUnknownChat(t *testing.T) {
	srv, _ := setupServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}
