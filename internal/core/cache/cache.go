// Package cache implements the TTL response cache kept in device storage.
//
// Entries are stored under kv.CachePrefix+key as
// {"data":...,"timestamp":<unix ms>,"expiryTime":<ms>}. An entry is fresh while
// now-timestamp <= expiryTime. Nothing is evicted automatically: expired
// entries are removed when Get observes them or when ClearExpired runs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/logging"
)

// DefaultTTL is used when Set is called with a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// State describes the outcome of a Lookup.
type State int

const (
	Absent State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// Entry is the persisted form of a cached value.
type Entry struct {
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`  // unix milliseconds
	ExpiryTime int64           `json:"expiryTime"` // milliseconds
}

func (e Entry) age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

func (e Entry) expired(now time.Time) bool {
	return e.age(now) > time.Duration(e.ExpiryTime)*time.Millisecond
}

// Result is returned by Lookup.
type Result struct {
	Data  json.RawMessage
	State State
	Age   time.Duration
}

// Store is the response cache.
type Store struct {
	kv     kv.Store
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a cache over the given storage.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logging.Component("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the default time to live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Key builds the cache key for a request. Params are encoded as JSON, which
// sorts map keys, so equal parameter sets always produce the same key.
func Key(method, endpoint string, params any) string {
	encoded := "{}"
	if params != nil {
		if b, err := json.Marshal(params); err == nil {
			encoded = string(b)
		}
	}
	return strings.ToUpper(method) + "_" + endpoint + "_" + encoded
}

// Set stores data under key with the given ttl, or the default ttl when ttl <= 0.
func (s *Store) Set(ctx context.Context, key string, data any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache set %q marshal: %w", key, err)
	}

	entry, err := json.Marshal(Entry{
		Data:       raw,
		Timestamp:  s.now().UnixMilli(),
		ExpiryTime: ttl.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("cache set %q marshal entry: %w", key, err)
	}

	if err := s.kv.Set(ctx, kv.CachePrefix+key, entry); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Get returns the cached data if present and fresh. An expired entry is
// deleted and reported as a miss. Storage failures are logged and reported
// as a miss.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	entry, ok := s.read(ctx, key)
	if !ok {
		return nil, false
	}

	if entry.expired(s.now()) {
		if err := s.kv.Delete(ctx, kv.CachePrefix+key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete expired entry")
		}
		return nil, false
	}

	return entry.Data, true
}

// Lookup reports whether key is fresh, stale or absent without deleting
// anything, so stale data stays available as an offline fallback.
func (s *Store) Lookup(ctx context.Context, key string) Result {
	entry, ok := s.read(ctx, key)
	if !ok {
		return Result{State: Absent}
	}

	now := s.now()
	state := Fresh
	if entry.expired(now) {
		state = Stale
	}

	return Result{Data: entry.Data, State: state, Age: entry.age(now)}
}

// Remove deletes a single entry.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, kv.CachePrefix+key); err != nil {
		return fmt.Errorf("cache remove %q: %w", key, err)
	}
	return nil
}

// RemoveMatching deletes every entry whose key satisfies match and returns
// how many were removed.
func (s *Store) RemoveMatching(ctx context.Context, match func(key string) bool) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}

	var doomed []string
	for _, k := range keys {
		if match(k) {
			doomed = append(doomed, kv.CachePrefix+k)
		}
	}

	if err := s.kv.Delete(ctx, doomed...); err != nil {
		return 0, fmt.Errorf("cache remove matching: %w", err)
	}
	return len(doomed), nil
}

// ClearAll deletes every cache entry and leaves other storage keys untouched.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.RemoveMatching(ctx, func(string) bool { return true })
	return err
}

// ClearExpired deletes all expired entries and returns how many were removed.
// Entries that cannot be decoded are removed as well.
func (s *Store) ClearExpired(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	var doomed []string
	for _, k := range keys {
		entry, ok := s.read(ctx, k)
		if !ok || entry.expired(now) {
			doomed = append(doomed, kv.CachePrefix+k)
		}
	}

	if err := s.kv.Delete(ctx, doomed...); err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}

	if len(doomed) > 0 {
		s.logger.Debug().Int("removed", len(doomed)).Msg("cleared expired entries")
	}
	return len(doomed), nil
}

// Size returns the aggregate size in bytes of all stored entries.
func (s *Store) Size(ctx context.Context) (int64, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, k := range keys {
		raw, err := s.kv.Get(ctx, kv.CachePrefix+k)
		if err != nil {
			if kv.IsNotFound(err) {
				continue
			}
			return 0, fmt.Errorf("cache size: %w", err)
		}
		total += int64(len(raw))
	}
	return total, nil
}

// Keys returns the cache keys with the storage namespace removed, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	all, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache keys: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, kv.CachePrefix); ok {
			keys = append(keys, rest)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) read(ctx context.Context, key string) (Entry, bool) {
	raw, err := s.kv.Get(ctx, kv.CachePrefix+key)
	if err != nil {
		if !kv.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache entry is corrupt")
		return Entry{}, false
	}
	return entry, true
}
