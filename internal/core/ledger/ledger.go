// Package ledger keeps the capped, persisted list of in-app notifications
// and the unread counter derived from it.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/notify"
	"github.com/dropzy/dropzy/internal/metrics"
)

// DefaultCapacity is the number of notifications retained.
const DefaultCapacity = 100

// Snapshot is the state handed to listeners.
type Snapshot struct {
	Notifications []notify.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

// Listener receives the full snapshot after every mutation.
type Listener func(Snapshot)

// Options configures a Ledger. Zero values select defaults.
type Options struct {
	Capacity int
	Pusher   notify.Pusher
	Metrics  metrics.Recorder
	Now      func() time.Time
	NewID    func() string
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Ledger is safe for concurrent use. Each mutation updates the list and the
// counter under one lock and persists both with a single SetMany.
type Ledger struct {
	store    kv.Store
	capacity int
	pusher   notify.Pusher
	metrics  metrics.Recorder
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger

	mu     sync.Mutex
	items  []notify.Notification
	unread int

	lmu       sync.Mutex
	listeners []listenerEntry
	nextID    uint64
}

// New creates an empty ledger over store. Call Load to restore the
// persisted state.
func New(store kv.Store, opts Options) *Ledger {
	l := &Ledger{
		store:    store,
		capacity: opts.Capacity,
		pusher:   opts.Pusher,
		metrics:  opts.Metrics,
		now:      opts.Now,
		newID:    opts.NewID,
		logger:   logging.Component("ledger"),
	}
	if l.capacity <= 0 {
		l.capacity = DefaultCapacity
	}
	if l.pusher == nil {
		l.pusher = notify.NopPusher{}
	}
	if l.metrics == nil {
		l.metrics = metrics.Nop{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = newID
	}
	return l
}

// newID returns a time ordered id.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory state with what is persisted. The unread
// counter is recomputed from the list.
func (l *Ledger) Load(ctx context.Context) error {
	var items []notify.Notification

	raw, err := l.store.Get(ctx, kv.KeyNotifications)
	switch {
	case kv.IsNotFound(err):
	case err != nil:
		return fmt.Errorf("load notifications: %w", err)
	default:
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decode notifications: %w", err)
		}
	}

	if len(items) > l.capacity {
		items = items[:l.capacity]
	}
	unread := countUnread(items)

	if raw, err := l.store.Get(ctx, kv.KeyUnreadCount); err == nil {
		if stored, perr := strconv.Atoi(string(raw)); perr == nil && stored != unread {
			l.logger.Debug().Int("stored", stored).Int("actual", unread).Msg("unread counter out of sync")
		}
	}

	l.mu.Lock()
	l.items = items
	l.unread = unread
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.metrics.SetUnread(snap.UnreadCount)
	l.notify(snap)
	return nil
}

// Add records a new unread notification and returns it.
func (l *Ledger) Add(ctx context.Context, d notify.Draft) (notify.Notification, error) {
	n := d.Build(l.newID(), l.now())

	snap, err := l.mutate(ctx, func(items []notify.Notification) []notify.Notification {
		items = append([]notify.Notification{n}, items...)
		if len(items) > l.capacity {
			items = items[:l.capacity]
		}
		return items
	})

	if perr := l.pusher.Push(ctx, n); perr != nil {
		l.logger.Warn().Err(perr).Msg("push notification failed")
	}
	if berr := l.pusher.SetBadge(ctx, snap.UnreadCount); berr != nil {
		l.logger.Warn().Err(berr).Msg("set badge failed")
	}

	return n, err
}

// MarkAsRead marks one notification read. Unknown or already read ids are
// a no-op and report false.
func (l *Ledger) MarkAsRead(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	idx := l.indexLocked(id)
	if idx < 0 || l.items[idx].Read {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	_, err := l.mutate(ctx, func(items []notify.Notification) []notify.Notification {
		if i := index(items, id); i >= 0 {
			items[i].Read = true
		}
		return items
	})
	return true, err
}

// MarkAllAsRead marks every notification read.
func (l *Ledger) MarkAllAsRead(ctx context.Context) error {
	_, err := l.mutate(ctx, func(items []notify.Notification) []notify.Notification {
		for i := range items {
			items[i].Read = true
		}
		return items
	})
	return err
}

// Delete removes one notification. It reports false when id is unknown.
func (l *Ledger) Delete(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	found := l.indexLocked(id) >= 0
	l.mu.Unlock()
	if !found {
		return false, nil
	}

	_, err := l.mutate(ctx, func(items []notify.Notification) []notify.Notification {
		if i := index(items, id); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}
		return items
	})
	return true, err
}

// ClearAll empties the ledger.
func (l *Ledger) ClearAll(ctx context.Context) error {
	_, err := l.mutate(ctx, func([]notify.Notification) []notify.Notification {
		return nil
	})
	return err
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Notifications returns a copy of the list, newest first.
func (l *Ledger) Notifications() []notify.Notification {
	return l.Snapshot().Notifications
}

// UnreadCount returns the number of unread notifications.
func (l *Ledger) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread
}

// AddListener registers fn and returns a func that removes it.
func (l *Ledger) AddListener(fn Listener) func() {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	l.nextID++
	id := l.nextID
	l.listeners = append(l.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		l.lmu.Lock()
		defer l.lmu.Unlock()
		for i, e := range l.listeners {
			if e.id == id {
				l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

// mutate applies fn to a copy of the list, recomputes the counter and
// persists both while holding the lock so concurrent writers persist in the
// order they mutate. Persistence failures keep the in-memory change.
func (l *Ledger) mutate(ctx context.Context, fn func([]notify.Notification) []notify.Notification) (Snapshot, error) {
	l.mu.Lock()
	items := fn(clone(l.items))
	l.items = items
	l.unread = countUnread(items)
	err := l.persistLocked(ctx)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	if err != nil {
		l.logger.Error().Err(err).Msg("persist notifications failed")
	}
	l.metrics.SetUnread(snap.UnreadCount)
	l.notify(snap)
	return snap, err
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	items := l.items
	if items == nil {
		items = []notify.Notification{}
	}
	list, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	err = l.store.SetMany(ctx, map[string][]byte{
		kv.KeyNotifications: list,
		kv.KeyUnreadCount:   []byte(strconv.Itoa(l.unread)),
	})
	if err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{Notifications: clone(l.items), UnreadCount: l.unread}
}

func (l *Ledger) indexLocked(id string) int {
	return index(l.items, id)
}

// notify delivers snap to every listener in registration order. A panicking
// listener is logged and skipped.
func (l *Ledger) notify(snap Snapshot) {
	l.lmu.Lock()
	listeners := make([]listenerEntry, len(l.listeners))
	copy(listeners, l.listeners)
	l.lmu.Unlock()

	for _, e := range listeners {
		l.deliver(e.fn, snap)
	}
}

func (l *Ledger) deliver(fn Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("ledger listener panicked")
		}
	}()
	fn(snap)
}

func index(items []notify.Notification, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func countUnread(items []notify.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

func clone(items []notify.Notification) []notify.Notification {
	if items == nil {
		return nil
	}
	out := make([]notify.Notification, len(items))
	copy(out, items)
	return out
}
