package relay

import "sync"

// hooks holds diagnostic callbacks. Unlike listeners they survive
// Disconnect.
type hooks struct {
	mu      sync.RWMutex
	onEvent []func(Event)
	onDrop  []func(any)
	onPanic []func(Event, any)
}

// OnEvent registers a hook that fires before an event is delivered.
func (r *Relay) OnEvent(fn func(Event)) {
	r.hooks.mu.Lock()
	r.hooks.onEvent = append(r.hooks.onEvent, fn)
	r.hooks.mu.Unlock()
}

// OnDrop registers a hook that fires when Send drops a message because the
// relay is not connected.
func (r *Relay) OnDrop(fn func(any)) {
	r.hooks.mu.Lock()
	r.hooks.onDrop = append(r.hooks.onDrop, fn)
	r.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when a listener panics.
func (r *Relay) OnPanic(fn func(Event, any)) {
	r.hooks.mu.Lock()
	r.hooks.onPanic = append(r.hooks.onPanic, fn)
	r.hooks.mu.Unlock()
}

func (r *Relay) runOnEvent(ev Event) {
	r.hooks.mu.RLock()
	hooks := make([]func(Event), len(r.hooks.onEvent))
	copy(hooks, r.hooks.onEvent)
	r.hooks.mu.RUnlock()
	for _, fn := range hooks {
		fn(ev)
	}
}

func (r *Relay) runOnDrop(msg any) {
	r.hooks.mu.RLock()
	hooks := make([]func(any), len(r.hooks.onDrop))
	copy(hooks, r.hooks.onDrop)
	r.hooks.mu.RUnlock()
	for _, fn := range hooks {
		fn(msg)
	}
}

func (r *Relay) runOnPanic(ev Event, recovered any) {
	r.hooks.mu.RLock()
	hooks := make([]func(Event, any), len(r.hooks.onPanic))
	copy(hooks, r.hooks.onPanic)
	r.hooks.mu.RUnlock()
	for _, fn := range hooks {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(ev, recovered)
		}()
	}
}
