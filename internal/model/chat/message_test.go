package chat

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"user", RoleUser, true},
		{"USER", RoleUser, true},
		{"model", RoleModel, true},
		{" assistant ", RoleModel, true},
		{"system", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		got, ok := ParseRole(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLastUserMessage(t *testing.T) {
	history := []Message{
		UserMessage("first"),
		ModelMessage("reply"),
		UserMessage("second"),
		ModelMessage("reply 2"),
	}

	got, ok := LastUserMessage(history)
	if !ok || got.Text != "second" {
		t.Fatalf("expected last user message 'second', got %+v (ok=%v)", got, ok)
	}

	if _, ok := LastUserMessage([]Message{ModelMessage("only model")}); ok {
		t.Fatal("expected no user message in model-only history")
	}
	if _, ok := LastUserMessage(nil); ok {
		t.Fatal("expected no user message in empty history")
	}
}
