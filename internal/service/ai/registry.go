package ai

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/tutor-chat/backend/internal/llm"
)

// SessionInfo is a read-only view of a live chat session.
type SessionInfo struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"personaId"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

type session struct {
	id         string
	personaID  string
	conv       llm.Conversation
	lastActive time.Time
}

// Registry owns the provider-side chat sessions, keyed by session ID.
// Sessions idle longer than the expiry are dropped by a background sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	idleTimeout   time.Duration
	sweepInterval time.Duration
	fallback      func(personaID string) string
	now           func() time.Time

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewRegistry creates an empty registry. fallback supplies the short prompt
// used when a provider rejects a persona's full system prompt.
func NewRegistry(idleTimeout, sweepInterval time.Duration, fallback func(personaID string) string) *Registry {
	if fallback == nil {
		fallback = func(string) string { return defaultFallbackPrompt }
	}
	return &Registry{
		sessions:      make(map[string]*session),
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		fallback:      fallback,
		now:           time.Now,
	}
}

// Resolve returns the session for sessionID, creating it when missing or when
// it was bound to a different persona.
func (r *Registry) Resolve(ctx context.Context, provider llm.Provider, sessionID, personaID, systemPrompt string) (llm.Conversation, error) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		if s.personaID == personaID {
			s.lastActive = r.now()
			conv := s.conv
			r.mu.Unlock()
			return conv, nil
		}
		delete(r.sessions, sessionID)
		log.Printf("[session] persona changed for session=%s (%s -> %s), recreating", sessionID, s.personaID, personaID)
	}
	r.mu.Unlock()

	conv, err := r.create(ctx, provider, sessionID, personaID, systemPrompt)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[sessionID] = &session{
		id:         sessionID,
		personaID:  personaID,
		conv:       conv,
		lastActive: r.now(),
	}
	r.mu.Unlock()
	return conv, nil
}

func (r *Registry) create(ctx context.Context, provider llm.Provider, sessionID, personaID, systemPrompt string) (llm.Conversation, error) {
	conv, err := provider.StartChat(ctx, systemPrompt)
	if err == nil {
		log.Printf("[session] created session=%s persona=%s", sessionID, personaID)
		return conv, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	log.Printf("[session] system prompt rejected for session=%s persona=%s: %v, retrying with fallback", sessionID, personaID, err)
	conv, fallbackErr := provider.StartChat(ctx, r.fallback(personaID))
	if fallbackErr != nil {
		return nil, &SessionCreationError{
			SessionID: sessionID,
			PersonaID: personaID,
			Initial:   err,
			Err:       fallbackErr,
		}
	}
	return conv, nil
}

// Invalidate drops one session.
func (r *Registry) Invalidate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Clear drops every session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*session)
}

// Touch marks a session as active now.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.lastActive = r.now()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot lists the live sessions.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{ID: s.id, PersonaID: s.personaID, LastActiveAt: s.lastActive})
	}
	return out
}

// Sweep removes sessions idle for longer than the expiry and returns how many were dropped.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastActive) > r.idleTimeout {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Start launches the periodic sweep. Calling Start twice is a no-op.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.sweepInterval <= 0 {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.loop(r.stop, r.done)
}

func (r *Registry) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// Close stops the sweep and waits for it to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}
