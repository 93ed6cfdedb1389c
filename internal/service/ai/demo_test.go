package ai

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDemoResponderStreamIsDeterministic(t *testing.T) {
	demo := &DemoResponder{}

	var first, second recorder
	a := demo.Stream(context.Background(), "Hi", first.callbacks())
	b := demo.Stream(context.Background(), "Hi", second.callbacks())

	if a != b || a != DemoStreamReply("Hi") {
		t.Fatalf("demo stream not idempotent: %q vs %q", a, b)
	}
	if first.joined() != a || len(first.completes) != 1 || first.completes[0] != a {
		t.Fatalf("unexpected callbacks %+v", &first)
	}
	if first.starts != 1 {
		t.Fatalf("expected one OnStart, got %d", first.starts)
	}
}

func TestDemoResponderStreamHonoursCancellation(t *testing.T) {
	demo := &DemoResponder{CharDelay: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	var rec recorder
	cb := rec.callbacks()
	onToken := cb.OnToken
	cb.OnToken = func(token string) {
		onToken(token)
		if len(rec.tokens) == 5 {
			cancel()
		}
	}

	got := demo.Stream(ctx, "Hi", cb)
	if got != rec.joined() || len(rec.tokens) != 5 {
		t.Fatalf("expected 5 tokens before cancellation, got %d (%q)", len(rec.tokens), got)
	}
	if len(rec.completes) != 0 || len(rec.errs) != 0 {
		t.Fatalf("cancelled stream must not complete or fail: %+v", &rec)
	}
}

func TestDemoResponderStreamSkipsCancelledContext(t *testing.T) {
	demo := &DemoResponder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var rec recorder
	if got := demo.Stream(ctx, "Hi", rec.callbacks()); got != "" {
		t.Fatalf("expected no text, got %q", got)
	}
	if rec.starts != 0 || len(rec.tokens) != 0 || len(rec.completes) != 0 {
		t.Fatalf("cancelled stream should fire no callbacks: %+v", &rec)
	}
}

func TestDemoResponderGenerate(t *testing.T) {
	demo := &DemoResponder{}
	got, err := demo.Generate(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if !strings.Contains(got, `"Hi"`) {
		t.Fatalf("demo reply should quote the prompt: %q", got)
	}

	slow := &DemoResponder{ResponseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := slow.Generate(ctx, "Hi"); err == nil {
		t.Fatal("expected cancelled Generate to fail")
	}
}
