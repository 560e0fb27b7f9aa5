package profiler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/metrics"
)

func start(t *testing.T, server *Server) string {
	t.Helper()
	require.NoError(t, server.Start(context.Background()), "Start() error")
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	return "http://" + server.Addr()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s error", url)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := New("127.0.0.1:0", nil, nil)
	require.NoError(t, server.Start(context.Background()), "Start() error")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(shutdownCtx), "Shutdown() error")
}

func TestServer_PprofEndpoints(t *testing.T) {
	baseURL := start(t, New("127.0.0.1:0", nil, nil))

	tests := []struct {
		name     string
		endpoint string
	}{
		{name: "index", endpoint: "/debug/pprof/"},
		{name: "cmdline", endpoint: "/debug/pprof/cmdline"},
		{name: "symbol", endpoint: "/debug/pprof/symbol"},
		{name: "health", endpoint: "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := get(t, baseURL+tt.endpoint)
			assert.Equal(t, http.StatusOK, status, "GET %s", tt.endpoint)
		})
	}
}

func TestServer_MetricsAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.SetUnread(4)

	status := func(context.Context) any {
		return map[string]any{"unread": 4, "relay": "connected"}
	}
	baseURL := start(t, New("127.0.0.1:0", metrics.Handler(reg), status))

	code, body := get(t, baseURL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "dropzy_notifications_unread 4")

	code, body = get(t, baseURL+"/debug/status")
	assert.Equal(t, http.StatusOK, code)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "connected", got["relay"])
}

func TestServer_StatusDisabled(t *testing.T) {
	baseURL := start(t, New("127.0.0.1:0", nil, nil))
	code, _ := get(t, baseURL+"/debug/status")
	assert.Equal(t, http.StatusNotFound, code)
}
