package dropzy

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/config"
	"github.com/dropzy/dropzy/internal/core/doctor"
	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/relay"
	"github.com/dropzy/dropzy/internal/core/relay/relaytest"
	"github.com/dropzy/dropzy/internal/core/session"
)

const wait = 2 * time.Second

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.FallbackURL = ""
	cfg.API.MaxRetries = 0
	cfg.Relay.ReconnectDelay = 10 * time.Millisecond
	cfg.DataDir = t.TempDir()

	a, err := New(context.Background(), &cfg, Options{Store: kv.NewMemory(), Ephemeral: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RestoresSession(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, session.NewStorageVault(store).Save(context.Background(), session.Session{
		Token: "tok",
		User:  session.User{ID: 3, Email: "ada@example.com"},
	}))

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	a, err := New(context.Background(), &cfg, Options{Store: store, Ephemeral: true})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.True(t, a.Session.IsAuthenticated())
	assert.Equal(t, "tok", a.Session.Token())
	assert.Nil(t, a.DB)
}

func TestNew_RelayDebugLogging(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	a := newTestApp(t, "http://127.0.0.1:1")
	require.ErrorIs(t, a.Relay.Send(map[string]any{"type": "ping"}), relay.ErrNotConnected)
	assert.Contains(t, buf.String(), "send dropped: not connected")
	assert.Contains(t, buf.String(), `"cmp":"relay.debug"`)

	buf.Reset()
	log.Logger = zerolog.New(&buf).Level(zerolog.InfoLevel)
	quiet := newTestApp(t, "http://127.0.0.1:1")
	require.ErrorIs(t, quiet.Relay.Send(map[string]any{"type": "ping"}), relay.ErrNotConnected)
	assert.NotContains(t, buf.String(), "relay.debug")
}

func TestPolicyFor(t *testing.T) {
	cfg := config.DefaultConfig().Relay

	flat, ok := PolicyFor(cfg).(relay.FlatPolicy)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, flat.Interval)
	assert.Equal(t, 5, flat.MaxAttempts)

	cfg.Reconnect = config.ReconnectExponential
	exp, ok := PolicyFor(cfg).(relay.ExponentialPolicy)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, exp.Max)
}

func TestStartLive_RecordsAndInvalidates(t *testing.T) {
	srv := relaytest.NewServer(t)
	a := newTestApp(t, srv.URL)
	rec := relaytest.Record(a.Relay)
	ctx := context.Background()

	require.NoError(t, a.Cache.Set(ctx, "GET_/api/orders_{}", map[string]any{"orders": []int{}}, 0))
	require.NoError(t, a.Cache.Set(ctx, "GET_/api/settings_{}", map[string]any{}, 0))

	live, err := a.StartLive(ctx, LiveOptions{Relay: true, Router: true})
	require.NoError(t, err)
	srv.Accept(t, wait)
	require.True(t, rec.WaitFor(relay.KindConnected, wait))

	srv.Push(t, map[string]any{"type": "order_created", "data": map[string]any{"message": "1 new order"}})

	require.Eventually(t, func() bool { return a.Ledger.UnreadCount() == 1 }, wait, 5*time.Millisecond)
	assert.Equal(t, "1 new order", a.Ledger.Notifications()[0].Message)

	keys, err := a.Cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GET_/api/settings_{}"}, keys)

	live.Stop()
	assert.Equal(t, 0, a.Relay.ListenerCount(relay.KindOrderCreated))
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := newTestApp(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, a.Cache.Set(ctx, "GET_/api/products_{}", map[string]any{"a": 1}, 0))

	s := a.Status(ctx, true)
	assert.Equal(t, srv.URL, s.BaseURL)
	assert.True(t, s.Online, "any HTTP answer counts as online")
	assert.False(t, s.Authenticated)
	assert.Equal(t, 1, s.CacheEntries)
	assert.Positive(t, s.CacheBytes)
	assert.Equal(t, "disconnected", s.Relay.State)
	assert.Empty(t, s.Errors)
}

func TestRunChecks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","version":"2.0.0"}`))
	}))
	defer srv.Close()

	a := newTestApp(t, srv.URL)
	results := a.RunChecks(context.Background(), "", false)
	require.Len(t, results, 4)

	passed, warned, failed := doctor.Summary(results)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, warned, "no session")
	assert.Positive(t, passed)

	server := results[2]
	require.NotEmpty(t, server.Items)
	assert.Equal(t, doctor.StatusPass, server.Items[0].Status)
	assert.Contains(t, server.Items[0].Detail, "2.0.0")
}

func TestRunChecks_ReportsSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.FallbackURL = ""
	cfg.DataDir = t.TempDir()

	a, err := New(context.Background(), &cfg, Options{})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	require.NotNil(t, a.DB)

	results := a.RunChecks(context.Background(), "", false)
	require.Len(t, results, 5)
	schema := results[4]
	assert.Equal(t, "Database schema", schema.Name)
	require.Len(t, schema.Items, 1)
	assert.Equal(t, doctor.StatusPass, schema.Items[0].Status)

	require.NoError(t, a.DB.Rollback(context.Background(), 1))
	results = a.RunChecks(context.Background(), "", false)
	assert.Equal(t, doctor.StatusWarn, results[4].Items[0].Status)
}
