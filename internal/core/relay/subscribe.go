package relay

// anyKind keys OnAny subscriptions.
const anyKind Kind = "*"

// Subscription identifies one registered listener.
type Subscription struct {
	relay *Relay
	kind  Kind
	id    uint64
}

// Unsubscribe removes the listener. Calling it more than once is harmless.
func (s Subscription) Unsubscribe() {
	if s.relay != nil {
		s.relay.Off(s)
	}
}

// On registers fn for events of kind.
func (r *Relay) On(kind Kind, fn Listener) Subscription {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	r.nextID++
	r.subs[kind] = append(r.subs[kind], entry{id: r.nextID, fn: fn})
	return Subscription{relay: r, kind: kind, id: r.nextID}
}

// OnAny registers fn for every event.
func (r *Relay) OnAny(fn Listener) Subscription {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	r.nextID++
	r.any = append(r.any, entry{id: r.nextID, fn: fn})
	return Subscription{relay: r, kind: anyKind, id: r.nextID}
}

// Off removes a listener registered with On or OnAny.
func (r *Relay) Off(sub Subscription) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if sub.kind == anyKind {
		r.any = without(r.any, sub.id)
		return
	}
	rest := without(r.subs[sub.kind], sub.id)
	if len(rest) == 0 {
		delete(r.subs, sub.kind)
		return
	}
	r.subs[sub.kind] = rest
}

// ListenerCount returns how many listeners are registered for kind.
func (r *Relay) ListenerCount(kind Kind) int {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	if kind == anyKind {
		return len(r.any)
	}
	return len(r.subs[kind])
}

// Subscribe registers a listener typed to the payload of kind. Events of a
// different payload type are skipped.
//
//	relay.Subscribe(r, relay.KindOrderCreated, func(ev *relay.OrderEvent) { ... })
func Subscribe[T Event](r *Relay, kind Kind, fn func(T)) Subscription {
	return r.On(kind, func(ev Event) {
		if typed, ok := ev.(T); ok {
			fn(typed)
		}
	})
}

func without(entries []entry, id uint64) []entry {
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}
