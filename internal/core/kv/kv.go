// Package kv defines the device storage contract shared by the session,
// cache and notification components.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no stored value.
var ErrNotFound = errors.New("kv: key not found")

// Well known storage keys.
const (
	KeyAuthToken     = "auth_token"
	KeyUserData      = "user_data"
	KeyAPIURL        = "api_url"
	KeyNotifications = "notifications"
	KeyUnreadCount   = "unreadCount"
	KeySeenRemote    = "seen_remote_notifications"

	// CachePrefix namespaces response cache entries.
	CachePrefix = "@dropship_cache_"
)

// Store is a persistent string-keyed store of raw JSON values. Implementations
// must be safe for concurrent use and must apply SetMany atomically.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, items map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

// IsNotFound reports whether err is a missing key error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
