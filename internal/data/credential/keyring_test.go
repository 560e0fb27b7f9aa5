package credential

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/session"
)

func TestKeyringVault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	vault := NewKeyringVault(keyring.NewArrayKeyring(nil), store)

	_, err := vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoSession)

	want := session.Session{Token: "tok", User: session.User{ID: 1, Email: "a@b.co"}}
	require.NoError(t, vault.Save(ctx, want))

	_, err = store.Get(ctx, kv.KeyAuthToken)
	assert.ErrorIs(t, err, kv.ErrNotFound, "token must not be written to device storage")

	got, err := vault.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, vault.Clear(ctx))
	require.NoError(t, vault.Clear(ctx), "clearing twice is fine")

	_, err = vault.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestOpen_FileBackend(t *testing.T) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      serviceName,
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("test"),
	})
	require.NoError(t, err)

	vault := NewKeyringVault(ring, kv.NewMemory())
	require.NoError(t, vault.Save(context.Background(), session.Session{Token: "file-tok"}))

	got, err := vault.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file-tok", got.Token)
}
