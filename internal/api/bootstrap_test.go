package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
)

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func savedURL(t *testing.T, store kv.Store) (string, error) {
	t.Helper()
	return kv.Typed[string](store).Get(context.Background(), kv.KeyAPIURL)
}

func TestResolve_SavedURLWins(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, kv.Typed[string](store).Set(context.Background(), kv.KeyAPIURL, "https://saved.example"))

	b := NewBootstrap(store, BootstrapOptions{BaseURL: "https://primary.invalid"})
	got, err := b.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example", got)
	assert.Equal(t, "https://saved.example", b.URL())
}

func TestResolve_FallsBackAndPersists(t *testing.T) {
	primary := healthServer(t, http.StatusBadGateway, ``)
	fallback := healthServer(t, http.StatusOK, `{"status":"healthy","timestamp":"2025-03-01T12:00:00"}`)
	store := kv.NewMemory()

	b := NewBootstrap(store, BootstrapOptions{BaseURL: primary.URL, FallbackURL: fallback.URL})
	got, err := b.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallback.URL, got)

	saved, err := savedURL(t, store)
	require.NoError(t, err)
	assert.Equal(t, fallback.URL, saved)
}

func TestResolve_NothingHealthyUsesPrimaryWithoutSaving(t *testing.T) {
	primary := healthServer(t, http.StatusOK, `{"status":"degraded"}`)
	store := kv.NewMemory()

	b := NewBootstrap(store, BootstrapOptions{BaseURL: primary.URL})
	got, err := b.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, primary.URL, got)

	_, err = savedURL(t, store)
	assert.True(t, kv.IsNotFound(err))
}

func TestSetAPIURL(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"status":"healthy"}`)
	store := kv.NewMemory()
	b := NewBootstrap(store, BootstrapOptions{BaseURL: "https://primary.invalid"})
	ctx := context.Background()

	require.Error(t, b.SetAPIURL(ctx, "ftp://nope", false))
	require.Error(t, b.SetAPIURL(ctx, "", false))

	require.NoError(t, b.SetAPIURL(ctx, srv.URL+"/", true))
	assert.Equal(t, srv.URL, b.URL())

	saved, err := savedURL(t, store)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, saved)

	require.NoError(t, b.ResetAPIURL(ctx))
	assert.Equal(t, "https://primary.invalid", b.URL())
}

func TestProbe_MinimumVersion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		min     string
		wantErr bool
	}{
		{name: "no minimum", body: `{"status":"healthy","version":"1.0.0"}`},
		{name: "newer", body: `{"status":"healthy","version":"2.1.0"}`, min: "2.0.0"},
		{name: "equal with v prefix", body: `{"status":"healthy","version":"v2.0.0"}`, min: "2.0.0"},
		{name: "older", body: `{"status":"healthy","version":"1.9.3"}`, min: "v2.0.0", wantErr: true},
		{name: "server reports none", body: `{"status":"healthy"}`, min: "2.0.0"},
		{name: "garbage version", body: `{"status":"healthy","version":"latest"}`, min: "2.0.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := healthServer(t, http.StatusOK, tt.body)
			b := NewBootstrap(kv.NewMemory(), BootstrapOptions{BaseURL: srv.URL, MinServerVersion: tt.min})

			h, err := b.Probe(context.Background(), srv.URL)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIncompatible)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "healthy", h.Status)
		})
	}
}

func TestProbe_Unhealthy(t *testing.T) {
	srv := healthServer(t, http.StatusServiceUnavailable, `{"status":"down"}`)
	b := NewBootstrap(kv.NewMemory(), BootstrapOptions{BaseURL: srv.URL})

	_, err := b.Probe(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUnhealthy)
}
