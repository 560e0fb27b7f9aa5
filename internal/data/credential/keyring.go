// Package credential stores the session token in the operating system keyring.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/session"
)

const (
	serviceName = "dropzy"
	tokenKey    = "auth_token"
)

// Open returns the system keyring, falling back to an encrypted file under
// dataDir when no native backend is available.
func Open(dataDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dataDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("dropzy-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringVault keeps the bearer token in a keyring and the user profile in
// device storage.
type KeyringVault struct {
	ring  keyring.Keyring
	store kv.Store
}

var _ session.Vault = (*KeyringVault)(nil)

// NewKeyringVault creates a vault over ring and store.
func NewKeyringVault(ring keyring.Keyring, store kv.Store) *KeyringVault {
	return &KeyringVault{ring: ring, store: store}
}

func (v *KeyringVault) Load(ctx context.Context) (session.Session, error) {
	item, err := v.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return session.Session{}, session.ErrNoSession
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}
	if len(item.Data) == 0 {
		return session.Session{}, session.ErrNoSession
	}

	user, err := session.LoadUser(ctx, v.store)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{Token: string(item.Data), User: user}, nil
}

func (v *KeyringVault) Save(ctx context.Context, s session.Session) error {
	err := v.ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(s.Token),
		Label: "dropzy session token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	user, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	return v.store.Set(ctx, kv.KeyUserData, user)
}

func (v *KeyringVault) Clear(ctx context.Context) error {
	err := v.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}
	return v.store.Delete(ctx, kv.KeyUserData)
}
