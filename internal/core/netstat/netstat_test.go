package netstat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).Reachable(context.Background()))
	assert.False(t, Static(false).Reachable(context.Background()))
}

func TestMonitor_ProbesHealth(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	m := NewMonitor(func() string { return srv.URL + "/" }, time.Second)

	assert.True(t, m.Reachable(context.Background()), "any response means reachable")
	assert.True(t, m.Reachable(context.Background()))
	assert.Equal(t, int32(1), hits.Load(), "second call uses the cached verdict")

	assert.True(t, m.Check(context.Background()))
	assert.Equal(t, int32(2), hits.Load(), "Check always probes")
}

func TestMonitor_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewMonitor(func() string { return url }, time.Second)
	assert.False(t, m.Reachable(context.Background()))
}

func TestMonitor_ListenersFireOnChange(t *testing.T) {
	m := NewMonitor(func() string { return "http://127.0.0.1:0" }, time.Second)

	var got []bool
	remove := m.AddListener(func(online bool) { got = append(got, online) })

	m.Observe(true)  // first observation is not a change
	m.Observe(true)  // no change
	m.Observe(false) // change
	m.Observe(true)  // change

	require.Equal(t, []bool{false, true}, got)

	remove()
	m.Observe(false)
	assert.Len(t, got, 2)
}

func TestMonitor_ObserveFeedsCache(t *testing.T) {
	m := NewMonitor(func() string { return "http://127.0.0.1:0" }, time.Second)
	m.Observe(true)
	assert.True(t, m.Reachable(context.Background()), "fresh observation avoids the probe")
}
