package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("GET", 200, 10*time.Millisecond)
	c.RecordRequest("GET", 200, 20*time.Millisecond)
	c.RecordRequest("POST", 503, time.Millisecond)
	c.RecordRetry("POST")
	c.RecordCacheLookup("fresh")
	c.RecordRelayEvent("order_created")
	c.RecordReconnect()
	c.SetRelayConnected(true)
	c.SetUnread(4)

	assert.InDelta(t, 2, testutil.ToFloat64(c.requests.WithLabelValues("GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.requests.WithLabelValues("POST", "503")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.retries.WithLabelValues("POST")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.cacheLookups.WithLabelValues("fresh")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.relayEvents.WithLabelValues("order_created")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.reconnects), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.relayConnected), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(c.unread), 0)

	c.SetRelayConnected(false)
	assert.InDelta(t, 0, testutil.ToFloat64(c.relayConnected), 0)
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRetry("GET")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dropzy_api_retries_total")
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordRequest("GET", 200, time.Second)
	r.SetUnread(1)
}
