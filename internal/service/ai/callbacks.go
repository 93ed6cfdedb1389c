package ai

// StreamCallbacks receives the events of one streamed reply. Every field is
// optional. Callbacks run on the streaming goroutine in arrival order; they
// may call CancelStream but must not start another stream.
//
// When the provider overflows its context mid-reply the session is rebuilt
// and the reply restarts: OnToken then continues with the new reply, and
// OnComplete carries only the new reply's text.
type StreamCallbacks struct {
	OnStart    func()
	OnToken    func(token string)
	OnComplete func(full string)
	OnError    func(err error)
}

func (cb StreamCallbacks) start() {
	if cb.OnStart != nil {
		cb.OnStart()
	}
}

func (cb StreamCallbacks) token(token string) {
	if cb.OnToken != nil {
		cb.OnToken(token)
	}
}

func (cb StreamCallbacks) complete(full string) {
	if cb.OnComplete != nil {
		cb.OnComplete(full)
	}
}

func (cb StreamCallbacks) fail(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}
