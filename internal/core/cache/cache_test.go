package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *kv.Memory, *fakeClock) {
	t.Helper()
	mem := kv.NewMemory()
	clock := newFakeClock()
	return New(mem, WithClock(clock.Now)), mem, clock
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("get", "/api/products", map[string]any{"page": 1, "per_page": 20})
	b := Key("GET", "/api/products", map[string]any{"per_page": 20, "page": 1})

	assert.Equal(t, a, b)
	assert.Equal(t, `GET_/api/products_{"page":1,"per_page":20}`, a)
	assert.Equal(t, "GET_/api/dashboard_{}", Key("GET", "/api/dashboard", nil))
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	type product struct {
		ID    int      `json:"id"`
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	want := []product{{ID: 1, Title: "Mug", Tags: []string{"kitchen"}}, {ID: 2, Title: "Lamp"}}

	require.NoError(t, store.Set(ctx, "products", want, 0))

	raw, ok := store.Get(ctx, "products")
	require.True(t, ok)

	var got []product
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, want, got)
}

func TestStore_RawMessageIsStoredVerbatim(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"a": 1}`), 0))

	raw, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestStore_PersistedShape(t *testing.T) {
	ctx := context.Background()
	store, mem, clock := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", map[string]int{"n": 1}, time.Minute))

	raw, err := mem.Get(ctx, kv.CachePrefix+"k")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"data":{"n":1},"timestamp":`+jsonInt(clock.Now().UnixMilli())+`,"expiryTime":60000}`,
		string(raw))
}

func TestStore_GetExpiredDeletes(t *testing.T) {
	ctx := context.Background()
	store, mem, clock := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	clock.Advance(time.Minute)
	_, ok := store.Get(ctx, "k")
	assert.True(t, ok, "entry at exactly ttl age is still fresh")

	clock.Advance(time.Millisecond)
	_, ok = store.Get(ctx, "k")
	assert.False(t, ok, "expired entry is never returned")

	_, err := mem.Get(ctx, kv.CachePrefix+"k")
	assert.ErrorIs(t, err, kv.ErrNotFound, "expired entry is deleted on read")
}

func TestStore_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	store, _, clock := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", 1, -1))

	clock.Advance(DefaultTTL)
	_, ok := store.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStore_Lookup(t *testing.T) {
	ctx := context.Background()
	store, _, clock := newTestStore(t)

	assert.Equal(t, Absent, store.Lookup(ctx, "k").State)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	res := store.Lookup(ctx, "k")
	assert.Equal(t, Fresh, res.State)
	assert.JSONEq(t, `"v"`, string(res.Data))

	clock.Advance(2 * time.Minute)
	res = store.Lookup(ctx, "k")
	assert.Equal(t, Stale, res.State)
	assert.Equal(t, 2*time.Minute, res.Age)
	assert.JSONEq(t, `"v"`, string(res.Data))

	// Lookup never deletes.
	assert.Equal(t, Stale, store.Lookup(ctx, "k").State)
}

func TestStore_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store, mem, _ := newTestStore(t)

	require.NoError(t, mem.Set(ctx, kv.CachePrefix+"bad", []byte("not json")))

	_, ok := store.Get(ctx, "bad")
	assert.False(t, ok)
	assert.Equal(t, Absent, store.Lookup(ctx, "bad").State)
}

func TestStore_ClearAllLeavesOtherKeys(t *testing.T) {
	ctx := context.Background()
	store, mem, _ := newTestStore(t)

	require.NoError(t, mem.Set(ctx, kv.KeyAuthToken, []byte(`"tok"`)))
	require.NoError(t, store.Set(ctx, "a", 1, 0))
	require.NoError(t, store.Set(ctx, "b", 2, 0))

	require.NoError(t, store.ClearAll(ctx))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = mem.Get(ctx, kv.KeyAuthToken)
	assert.NoError(t, err, "non-cache keys survive ClearAll")
}

func TestStore_ClearExpired(t *testing.T) {
	ctx := context.Background()
	store, mem, clock := newTestStore(t)

	require.NoError(t, store.Set(ctx, "short", 1, time.Second))
	require.NoError(t, store.Set(ctx, "long", 2, time.Hour))
	require.NoError(t, mem.Set(ctx, kv.CachePrefix+"corrupt", []byte("{")))

	clock.Advance(time.Minute)

	removed, err := store.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"long"}, keys)
}

func TestStore_RemoveMatching(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	require.NoError(t, store.Set(ctx, Key("GET", "/api/orders", nil), 1, 0))
	require.NoError(t, store.Set(ctx, Key("GET", "/api/orders/7", nil), 1, 0))
	require.NoError(t, store.Set(ctx, Key("GET", "/api/products", nil), 1, 0))

	n, err := store.RemoveMatching(ctx, func(k string) bool {
		return len(k) > 15 && k[:15] == "GET_/api/orders"
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Key("GET", "/api/products", nil)}, keys)
}

func TestStore_SizeAndRemove(t *testing.T) {
	ctx := context.Background()
	store, mem, _ := newTestStore(t)

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, store.Set(ctx, "a", "x", 0))
	raw, err := mem.Get(ctx, kv.CachePrefix+"a")
	require.NoError(t, err)

	size, err = store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), size)

	require.NoError(t, store.Remove(ctx, "a"))
	require.NoError(t, store.Remove(ctx, "a"), "removing a missing key is not an error")

	size, err = store.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestSweep_StopsOnCancel(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, store.Set(ctx, "k", 1, time.Millisecond))
	clock.Advance(time.Second)

	done := make(chan struct{})
	go func() {
		Sweep(ctx, store, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		keys, _ := store.Keys(context.Background())
		return len(keys) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop after cancel")
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
