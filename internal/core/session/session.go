// Package session holds the authenticated identity used by the API client.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/logging"
)

// User is the profile returned by the server on login.
type User struct {
	ID    int64  `json:"user_id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is a bearer token with the user it belongs to.
type Session struct {
	Token string
	User  User
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool { return s.Token != "" }

// ErrNoSession is returned by a Vault that holds no session.
var ErrNoSession = errors.New("session: none stored")

// Vault persists a session between runs.
type Vault interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Manager owns the current session. It is safe for concurrent use; listeners
// are invoked outside the lock.
type Manager struct {
	vault  Vault
	logger zerolog.Logger

	mu        sync.RWMutex
	current   Session
	listeners map[int]func(Session)
	nextID    int
}

// NewManager creates a manager backed by vault. Call Restore to load a
// previously saved session.
func NewManager(vault Vault) *Manager {
	return &Manager{
		vault:     vault,
		logger:    logging.Component("session"),
		listeners: make(map[int]func(Session)),
	}
}

// Restore loads the persisted session, if any.
func (m *Manager) Restore(ctx context.Context) error {
	s, err := m.vault.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// Token returns the bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Token
}

// User returns the signed in user.
func (m *Manager) User() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.User, m.current.Valid()
}

// Current returns a copy of the session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

// Set persists and activates s.
func (m *Manager) Set(ctx context.Context, s Session) error {
	if !s.Valid() {
		return fmt.Errorf("set session: token is empty")
	}
	if err := m.vault.Save(ctx, s); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.logger.Info().Str("email", s.User.Email).Msg("session started")
	m.notify(s)
	return nil
}

// Clear drops the in-memory session unconditionally, then removes the
// persisted copy. A vault failure is returned but never leaves the token
// active in memory.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	had := m.current.Valid()
	m.current = Session{}
	m.mu.Unlock()

	err := m.vault.Clear(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to clear persisted session")
	}

	if had {
		m.logger.Info().Msg("session cleared")
		m.notify(Session{})
	}

	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// OnChange registers fn to be called after the session is set or cleared.
// The returned func removes the listener.
func (m *Manager) OnChange(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(s Session) {
	m.mu.RLock()
	fns := make([]func(Session), 0, len(m.listeners))
	for i := 0; i < m.nextID; i++ {
		if fn, ok := m.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error().Interface("panic", r).Msg("session listener panicked")
				}
			}()
			fn(s)
		}()
	}
}
