package relay_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/relay"
	"github.com/dropzy/dropzy/internal/core/relay/relaytest"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRegisterDebugLogger(t *testing.T) {
	srv := relaytest.NewServer(t)
	r := newRelay(relay.Options{})
	rec := relaytest.Record(r)

	var out syncBuffer
	relay.RegisterDebugLogger(r, zerolog.New(&out).Level(zerolog.DebugLevel))

	require.ErrorIs(t, r.Send(map[string]any{"type": "ping"}), relay.ErrNotConnected)
	assert.Contains(t, out.String(), "send dropped: not connected")

	r.On(relay.KindStockOut, func(relay.Event) { panic("boom") })

	connect(t, r, srv)
	srv.Accept(t, wait)
	srv.Push(t, map[string]any{"type": "stock_out", "data": map[string]any{"product_id": 9}})
	require.True(t, rec.WaitFor(relay.KindStockOut, wait))

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, `"message":"listener panicked"`) &&
			strings.Contains(s, `"panic":"boom"`)
	}, wait, 5*time.Millisecond)

	logged := out.String()
	assert.Contains(t, logged, `"event":"connected"`)
	assert.Contains(t, logged, `"event":"stock_out"`)
	assert.Contains(t, logged, "event received")
}

func TestRegisterDebugLogger_Nop(t *testing.T) {
	r := newRelay(relay.Options{})
	relay.RegisterDebugLogger(r, zerolog.Nop())

	assert.ErrorIs(t, r.Send("hello"), relay.ErrNotConnected)
}
