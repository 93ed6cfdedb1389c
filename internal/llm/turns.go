package llm

import (
	"sync"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/service/history"
)

// turnLog is the committed history of one conversation.
type turnLog struct {
	mu           sync.Mutex
	systemPrompt string
	window       history.Window
	turns        []chat.Message
}

func newTurnLog(systemPrompt string, window history.Window) *turnLog {
	return &turnLog{systemPrompt: systemPrompt, window: window}
}

// replay returns the turns to send ahead of the next user message.
func (l *turnLog) replay() []chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.window.TokenLimit <= 0 {
		return append([]chat.Message(nil), l.turns...)
	}
	return l.window.Apply(l.turns, l.systemPrompt)
}

func (l *turnLog) commit(user, reply string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, chat.UserMessage(user), chat.ModelMessage(reply))
}

func (l *turnLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
