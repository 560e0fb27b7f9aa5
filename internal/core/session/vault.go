package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dropzy/dropzy/internal/core/kv"
)

// StorageVault keeps the token and user in device storage under the
// auth_token and user_data keys.
type StorageVault struct {
	store kv.Store
}

var _ Vault = (*StorageVault)(nil)

// NewStorageVault creates a vault over store.
func NewStorageVault(store kv.Store) *StorageVault {
	return &StorageVault{store: store}
}

func (v *StorageVault) Load(ctx context.Context) (Session, error) {
	rawToken, err := v.store.Get(ctx, kv.KeyAuthToken)
	if kv.IsNotFound(err) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}

	var s Session
	if err := json.Unmarshal(rawToken, &s.Token); err != nil {
		return Session{}, fmt.Errorf("decode token: %w", err)
	}
	if s.Token == "" {
		return Session{}, ErrNoSession
	}

	user, err := LoadUser(ctx, v.store)
	if err != nil {
		return Session{}, err
	}
	s.User = user
	return s, nil
}

func (v *StorageVault) Save(ctx context.Context, s Session) error {
	token, err := json.Marshal(s.Token)
	if err != nil {
		return err
	}
	user, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	return v.store.SetMany(ctx, map[string][]byte{
		kv.KeyAuthToken: token,
		kv.KeyUserData:  user,
	})
}

func (v *StorageVault) Clear(ctx context.Context) error {
	return v.store.Delete(ctx, kv.KeyAuthToken, kv.KeyUserData)
}

// LoadUser reads the persisted user profile. A missing profile is not an error.
func LoadUser(ctx context.Context, store kv.Store) (User, error) {
	raw, err := store.Get(ctx, kv.KeyUserData)
	if kv.IsNotFound(err) {
		return User{}, nil
	}
	if err != nil {
		return User{}, err
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

// MemoryVault keeps the session in memory only.
type MemoryVault struct {
	mu sync.Mutex
	s  Session
}

func (v *MemoryVault) Load(context.Context) (Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.s.Valid() {
		return Session{}, ErrNoSession
	}
	return v.s, nil
}

func (v *MemoryVault) Save(_ context.Context, s Session) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s = s
	return nil
}

func (v *MemoryVault) Clear(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.s = Session{}
	return nil
}
