package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
)

func TestMemory_GetMissing(t *testing.T) {
	store := kv.NewMemory()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.True(t, kv.IsNotFound(err))
}

func TestMemory_SetManyAndDelete(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	require.NoError(t, store.SetMany(ctx, map[string][]byte{
		"a": []byte(`1`),
		"b": []byte(`2`),
		"c": []byte(`3`),
	}))
	require.NoError(t, store.Delete(ctx, "a", "c", "missing"))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	buf := []byte(`"x"`)
	require.NoError(t, store.Set(ctx, "k", buf))
	buf[1] = 'y'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"x"`, string(got))
}

func TestTypedKV_SetAndGet(t *testing.T) {
	ctx := context.Background()
	typed := kv.Typed[[]string](kv.NewMemory())

	require.NoError(t, typed.Set(ctx, "ids", []string{"a", "b"}))

	got, err := typed.Get(ctx, "ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestTypedKV_ScopedPrefix(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	alpha := kv.Scoped[int](store, "alpha")
	beta := kv.Scoped[int](store, "beta")

	require.NoError(t, alpha.Set(ctx, "count", 10))
	require.NoError(t, beta.Set(ctx, "count", 20))

	a, err := alpha.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 10, a)

	b, err := beta.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 20, b)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha:count", "beta:count"}, keys)

	scoped, err := alpha.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, scoped)
}

func TestTypedKV_GetMissing(t *testing.T) {
	_, err := kv.Scoped[string](kv.NewMemory(), "x").Get(context.Background(), "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
