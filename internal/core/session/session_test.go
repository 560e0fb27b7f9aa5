package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
)

var testSession = Session{
	Token: "tok-123",
	User:  User{ID: 7, Email: "seller@example.com", Name: "Seller"},
}

func TestStorageVault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	vault := NewStorageVault(store)

	_, err := vault.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, vault.Save(ctx, testSession))

	raw, err := store.Get(ctx, kv.KeyUserData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":7,"email":"seller@example.com","name":"Seller"}`, string(raw))

	got, err := vault.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSession, got)

	require.NoError(t, vault.Clear(ctx))
	assert.Zero(t, store.Len())
}

func TestManager_RestoreSetClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, NewStorageVault(store).Save(ctx, testSession))

	m := NewManager(NewStorageVault(store))
	assert.False(t, m.IsAuthenticated())

	require.NoError(t, m.Restore(ctx))
	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "tok-123", m.Token())

	user, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, int64(7), user.ID)

	require.NoError(t, m.Clear(ctx))
	assert.False(t, m.IsAuthenticated())
	_, ok = m.User()
	assert.False(t, ok)

	_, err := store.Get(ctx, kv.KeyAuthToken)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestManager_RestoreEmpty(t *testing.T) {
	m := NewManager(&MemoryVault{})
	require.NoError(t, m.Restore(context.Background()))
	assert.False(t, m.IsAuthenticated())
}

func TestManager_SetRejectsEmptyToken(t *testing.T) {
	m := NewManager(&MemoryVault{})
	assert.Error(t, m.Set(context.Background(), Session{}))
}

type failingVault struct{ MemoryVault }

func (*failingVault) Clear(context.Context) error { return errors.New("disk full") }

func TestManager_ClearDropsTokenEvenWhenVaultFails(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&failingVault{})
	require.NoError(t, m.Set(ctx, testSession))

	err := m.Clear(ctx)
	require.Error(t, err)
	assert.False(t, m.IsAuthenticated())
}

func TestManager_OnChange(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&MemoryVault{})

	var seen []string
	unsubscribe := m.OnChange(func(s Session) { seen = append(seen, s.Token) })
	m.OnChange(func(Session) { panic("boom") })

	require.NoError(t, m.Set(ctx, testSession))
	require.NoError(t, m.Clear(ctx))
	require.NoError(t, m.Clear(ctx)) // already clear, no event

	assert.Equal(t, []string{"tok-123", ""}, seen)

	unsubscribe()
	require.NoError(t, m.Set(ctx, testSession))
	assert.Len(t, seen, 2)
}
