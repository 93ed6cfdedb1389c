package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("a", 4000), 1000},
		{"សួស្ដី", 2},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Fatalf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestPruneDropsOversizedOlderTurn(t *testing.T) {
	messages := []chat.Message{
		chat.UserMessage(strings.Repeat("a", 4000)),
		chat.UserMessage("b"),
	}

	got := Prune(messages, "", 100, 0)
	if len(got) != 2 {
		t.Fatalf("expected marker plus one message, got %d: %+v", len(got), got)
	}
	if got[0].Role != chat.RoleModel || got[0].Text != ElisionText {
		t.Fatalf("expected elision marker first, got %+v", got[0])
	}
	if got[1].Role != chat.RoleUser || got[1].Text != "b" {
		t.Fatalf("expected newest message kept, got %+v", got[1])
	}
}

func TestPruneKeepsEverythingWithinBudget(t *testing.T) {
	messages := []chat.Message{
		chat.UserMessage("Hi"),
		chat.ModelMessage("Hello there"),
		chat.UserMessage("Explain gravity"),
	}

	got := Prune(messages, "You are helpful.", 1000, 10)
	if len(got) != len(messages) {
		t.Fatalf("expected no pruning, got %+v", got)
	}
	for i := range messages {
		if got[i] != messages[i] {
			t.Fatalf("message %d changed: %+v", i, got[i])
		}
	}

	got[0].Text = "mutated"
	if messages[0].Text != "Hi" {
		t.Fatal("Prune must not alias its input")
	}
}

func TestPruneReturnsOversizedNewestMessage(t *testing.T) {
	messages := []chat.Message{
		chat.UserMessage("short"),
		chat.UserMessage(strings.Repeat("z", 800)),
	}

	got := Prune(messages, "", 50, 0)
	if len(got) != 2 || got[0].Text != ElisionText || got[1].Text != messages[1].Text {
		t.Fatalf("expected marker plus oversized newest turn, got %+v", got)
	}
}

func TestPruneEmpty(t *testing.T) {
	got := Prune(nil, "system", 100, 0)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestPruneRespectsBudgetAndSuffixOrder(t *testing.T) {
	const systemPrompt = "You are a patient tutor."
	var messages []chat.Message
	for i := 0; i < 40; i++ {
		text := fmt.Sprintf("turn %d %s", i, strings.Repeat("x", (i*37)%200))
		if i%2 == 0 {
			messages = append(messages, chat.UserMessage(text))
		} else {
			messages = append(messages, chat.ModelMessage(text))
		}
	}

	for _, limit := range []int{60, 120, 300, 700, 2000} {
		reserve := 10
		got := Prune(messages, systemPrompt, limit, reserve)

		total := EstimateTokens(systemPrompt) + reserve
		for _, m := range got {
			total += EstimateTokens(m.Text)
		}
		kept := got
		if len(got) > 0 && got[0].Text == ElisionText {
			kept = got[1:]
		}
		if total > limit && len(kept) > 1 {
			t.Fatalf("limit %d: pruned history costs %d", limit, total)
		}

		offset := len(messages) - len(kept)
		for i, m := range kept {
			if m != messages[offset+i] {
				t.Fatalf("limit %d: kept messages are not a suffix at %d", limit, i)
			}
		}

		again := Prune(messages, systemPrompt, limit, reserve)
		if len(again) != len(got) {
			t.Fatalf("limit %d: pruning is not deterministic", limit)
		}
	}
}

func TestWindowApply(t *testing.T) {
	w := Window{TokenLimit: 100, ReserveTokens: 0}
	got := w.Apply([]chat.Message{chat.UserMessage(strings.Repeat("a", 4000)), chat.UserMessage("b")}, "")
	if len(got) != 2 || got[0].Text != ElisionText {
		t.Fatalf("unexpected window result %+v", got)
	}
}
