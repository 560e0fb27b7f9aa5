package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TypedKV provides JSON encoded access to a Store for a specific type T.
type TypedKV[T any] struct {
	store  Store
	prefix string
}

// Typed returns a TypedKV[T] that uses keys verbatim.
func Typed[T any](store Store) *TypedKV[T] {
	return &TypedKV[T]{store: store}
}

// Scoped returns a TypedKV[T] that prefixes all keys with "namespace:".
func Scoped[T any](store Store, namespace string) *TypedKV[T] {
	return &TypedKV[T]{
		store:  store,
		prefix: namespace + ":",
	}
}

// Get retrieves and deserializes a value by key.
func (t *TypedKV[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	raw, err := t.store.Get(ctx, t.prefix+key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("kv get %q unmarshal: %w", t.prefix+key, err)
	}
	return v, nil
}

// Set serializes and stores a value.
func (t *TypedKV[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv set %q marshal: %w", t.prefix+key, err)
	}
	return t.store.Set(ctx, t.prefix+key, data)
}

// Delete removes a key.
func (t *TypedKV[T]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, t.prefix+key)
}

// Keys returns the keys inside the scope with the scope prefix removed.
func (t *TypedKV[T]) Keys(ctx context.Context) ([]string, error) {
	all, err := t.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, t.prefix); ok {
			out = append(out, rest)
		}
	}
	return out, nil
}
