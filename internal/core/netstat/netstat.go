// Package netstat answers whether the server is reachable right now.
package netstat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/logging"
)

// Checker reports connectivity before the API client dispatches a request.
type Checker interface {
	Reachable(ctx context.Context) bool
}

// Static is a Checker with a fixed answer.
type Static bool

func (s Static) Reachable(context.Context) bool { return bool(s) }

// DefaultFreshness is how long a probe result is reused.
const DefaultFreshness = 2 * time.Second

// Monitor probes <base>/health and remembers the verdict for a short window.
// Any HTTP response counts as reachable; only transport failures mean offline.
type Monitor struct {
	baseURL   func() string
	client    *http.Client
	freshness time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu        sync.Mutex
	known     bool
	online    bool
	checkedAt time.Time
	listeners map[int]func(bool)
	nextID    int
}

var _ Checker = (*Monitor)(nil)

// NewMonitor creates a monitor probing baseURL() with the given timeout.
func NewMonitor(baseURL func() string, timeout time.Duration) *Monitor {
	return &Monitor{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		freshness: DefaultFreshness,
		now:       time.Now,
		logger:    logging.Component("netstat"),
		listeners: make(map[int]func(bool)),
	}
}

// Reachable returns the cached verdict when fresh, otherwise probes.
func (m *Monitor) Reachable(ctx context.Context) bool {
	m.mu.Lock()
	if m.known && m.now().Sub(m.checkedAt) < m.freshness {
		online := m.online
		m.mu.Unlock()
		return online
	}
	m.mu.Unlock()

	online := m.probe(ctx)
	m.Observe(online)
	return online
}

// Check forces a probe and returns the result.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe(ctx)
	m.Observe(online)
	return online
}

// Observe records a connectivity result seen elsewhere, such as a completed
// or failed API request. Listeners fire only when the state changes.
func (m *Monitor) Observe(online bool) {
	m.mu.Lock()
	changed := m.known && m.online != online
	m.known = true
	m.online = online
	m.checkedAt = m.now()

	var fns []func(bool)
	if changed {
		for i := 0; i < m.nextID; i++ {
			if fn, ok := m.listeners[i]; ok {
				fns = append(fns, fn)
			}
		}
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info().Bool("online", online).Msg("connectivity changed")
	}
	for _, fn := range fns {
		fn(online)
	}
}

// AddListener registers fn for connectivity changes. The returned func
// removes it.
func (m *Monitor) AddListener(fn func(online bool)) func() {
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

func (m *Monitor) probe(ctx context.Context) bool {
	url := strings.TrimRight(m.baseURL(), "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		m.logger.Debug().Err(err).Str("url", url).Msg("bad probe url")
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug().Err(err).Str("url", url).Msg("probe failed")
		return false
	}
	_ = resp.Body.Close()
	return true
}
