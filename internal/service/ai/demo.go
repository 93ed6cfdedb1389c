package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	demoReplyTemplate  = `This is a demo response to: "%s". For real AI responses, please configure your API key.`
	demoStreamTemplate = demoReplyTemplate + `

Here's a LaTeX formula example:
$E = mc^2$

And a more complex one:
$$\frac{d}{dx}\left( \int_{0}^{x} f(u)\,du\right)=f(x)$$`
)

// DemoResponder simulates a model when no credential is configured.
type DemoResponder struct {
	CharDelay     time.Duration
	ResponseDelay time.Duration
}

// DemoReply is the text Generate returns for prompt.
func DemoReply(prompt string) string {
	return fmt.Sprintf(demoReplyTemplate, prompt)
}

// DemoStreamReply is the text Stream delivers for prompt.
func DemoStreamReply(prompt string) string {
	return fmt.Sprintf(demoStreamTemplate, prompt)
}

// Generate returns the demo reply after ResponseDelay.
func (d *DemoResponder) Generate(ctx context.Context, prompt string) (string, error) {
	if !sleepCtx(ctx, d.ResponseDelay) {
		return "", ctx.Err()
	}
	return DemoReply(prompt), nil
}

// Stream delivers the demo reply one character per CharDelay. Cancellation
// returns the text emitted so far without a terminal callback.
func (d *DemoResponder) Stream(ctx context.Context, prompt string, cb StreamCallbacks) string {
	if ctx.Err() != nil {
		return ""
	}
	cb.start()

	var full strings.Builder
	for _, r := range DemoStreamReply(prompt) {
		if ctx.Err() != nil {
			log.Printf("[stream] demo stream cancelled after %d bytes", full.Len())
			return full.String()
		}
		chunk := string(r)
		full.WriteString(chunk)
		cb.token(chunk)
		if !sleepCtx(ctx, d.CharDelay) {
			log.Printf("[stream] demo stream cancelled after %d bytes", full.Len())
			return full.String()
		}
	}
	if ctx.Err() != nil {
		return full.String()
	}

	cb.complete(full.String())
	return full.String()
}

// sleepCtx waits for d and reports whether ctx is still live afterwards.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
