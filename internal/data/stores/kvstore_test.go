package stores

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/data/db"
)

func newTestKVStore(t *testing.T) *KVStore {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewKVStore(database)
}

func TestKVStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "test-key", []byte(`{"name":"hello","value":42}`)))

	got, err := store.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"hello","value":42}`, string(got))
}

func TestKVStore_GetNotFound(t *testing.T) {
	store := newTestKVStore(t)

	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestKVStore_SetOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "key", []byte(`"first"`)))
	require.NoError(t, store.Set(ctx, "key", []byte(`"second"`)))

	got, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, `"second"`, string(got))
}

func TestKVStore_SetMany(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.SetMany(ctx, map[string][]byte{
		kv.KeyNotifications: []byte(`[]`),
		kv.KeyUnreadCount:   []byte(`0`),
	}))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{kv.KeyNotifications, kv.KeyUnreadCount}, keys)
}

func TestKVStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "a", []byte(`1`)))
	require.NoError(t, store.Set(ctx, "b", []byte(`2`)))
	require.NoError(t, store.Set(ctx, "c", []byte(`3`)))

	require.NoError(t, store.Delete(ctx, "a", "c", "missing"))
	require.NoError(t, store.Delete(ctx))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestKVStore_TypedAccess(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[map[string]int](newTestKVStore(t), "counts")

	require.NoError(t, typed.Set(ctx, "orders", map[string]int{"pending": 3}))

	got, err := typed.Get(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 3, got["pending"])
}

func TestRecoverFromCorruption(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, db.FileName)
	require.NoError(t, os.WriteFile(dbPath, []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("garbage"), 0o644))

	require.NoError(t, RecoverFromCorruption(dir))

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "corrupted file should be moved aside")
	_, err = os.Stat(dbPath + "-wal")
	assert.True(t, os.IsNotExist(err), "wal file should be moved aside")

	database, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)
	require.NoError(t, database.Close())
}

func TestRecoverFromCorruption_MissingFile(t *testing.T) {
	assert.NoError(t, RecoverFromCorruption(t.TempDir()))
}

func TestIsCorruptionError(t *testing.T) {
	assert.False(t, IsCorruptionError(nil))
	assert.True(t, IsCorruptionError(assertErr("file is not a database")))
	assert.False(t, IsCorruptionError(assertErr("boom")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
