package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/ledger"
	"github.com/dropzy/dropzy/internal/core/notify"
)

type fakeSource struct {
	mu    sync.Mutex
	res   api.NewOrders
	err   error
	calls int
}

func (f *fakeSource) NewOrders(context.Context) (api.NewOrders, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.res, f.err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func remote(id string, read bool) api.RemoteNotification {
	return api.RemoteNotification{ID: id, Type: "new_order", Title: "New order", Message: "order " + id, Read: read}
}

func TestPoll_AddsUnseenOnce(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := ledger.New(store, ledger.Options{})
	src := &fakeSource{res: api.NewOrders{
		PendingOrders: 2,
		Notifications: []api.RemoteNotification{remote("b", false), remote("a", false), remote("old", true)},
	}}

	p := NewPoller(src, l, store, time.Minute)

	added, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	items := l.Notifications()
	require.Len(t, items, 2)
	assert.Equal(t, "order b", items[0].Message, "newest remote entry stays first")
	assert.Equal(t, notify.TypeNewOrder, items[0].Type)
	assert.Equal(t, "cart", items[0].Icon)

	added, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	// a fresh poller over the same storage remembers what was seen
	added, err = NewPoller(src, l, store, time.Minute).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Len(t, l.Notifications(), 2)
}

func TestPoll_SeenSetIsCapped(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := ledger.New(store, ledger.Options{})

	src := &fakeSource{}
	for _, id := range []string{"e", "d", "c", "b", "a"} {
		src.res.Notifications = append(src.res.Notifications, remote(id, true))
	}

	p := NewPoller(src, l, store, time.Minute)
	p.seenLimit = 3

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	seen, err := kv.Typed[[]string](store).Get(ctx, kv.KeySeenRemote)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, seen)
}

func TestRun_StopsOnAuthError(t *testing.T) {
	store := kv.NewMemory()
	src := &fakeSource{err: &api.Error{Kind: api.KindAuth, Status: 401, Message: api.MsgSessionExpired}}
	p := NewPoller(src, ledger.New(store, ledger.Options{}), store, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.True(t, api.IsAuth(err))
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on auth error")
	}
	assert.Equal(t, 1, src.Calls())
}

func TestRun_KeepsPollingAfterTransientErrors(t *testing.T) {
	store := kv.NewMemory()
	src := &fakeSource{err: errors.New("temporary")}
	p := NewPoller(src, ledger.New(store, ledger.Options{}), store, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
