// Package history estimates token usage and trims conversation history to
// fit a model's context window.
package history

import (
	"unicode/utf8"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
)

// ElisionText marks that older turns were dropped from the history.
const ElisionText = "...(Earlier parts of the conversation were summarized to save space)..."

// EstimateTokens approximates token usage at four characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Window bundles the context budget used by Prune.
type Window struct {
	TokenLimit    int
	ReserveTokens int
}

// Apply prunes messages for a session seeded with systemPrompt.
func (w Window) Apply(messages []chat.Message, systemPrompt string) []chat.Message {
	return Prune(messages, systemPrompt, w.TokenLimit, w.ReserveTokens)
}

// Prune keeps the newest suffix of messages whose estimated cost fits
// tokenLimit minus the system prompt and reserveTokens. When older turns are
// dropped a model-role elision marker is prepended and its cost is charged to
// the same budget. The newest message is always kept, even over budget.
//
// The returned slice never aliases messages.
func Prune(messages []chat.Message, systemPrompt string, tokenLimit, reserveTokens int) []chat.Message {
	if len(messages) == 0 {
		return []chat.Message{}
	}

	available := tokenLimit - EstimateTokens(systemPrompt) - reserveTokens

	start := len(messages)
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := EstimateTokens(messages[i].Text)
		if start < len(messages) && total+cost > available {
			break
		}
		total += cost
		start = i
		if total > available {
			// newest message alone exceeds the budget
			break
		}
	}

	if start == 0 {
		return append([]chat.Message(nil), messages...)
	}

	markerCost := EstimateTokens(ElisionText)
	for start < len(messages)-1 && total+markerCost > available {
		total -= EstimateTokens(messages[start].Text)
		start++
	}

	pruned := make([]chat.Message, 0, len(messages)-start+1)
	pruned = append(pruned, chat.ModelMessage(ElisionText))
	pruned = append(pruned, messages[start:]...)
	return pruned
}
