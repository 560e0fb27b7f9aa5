// Package relay keeps a single websocket subscription to the server's /ws
// endpoint, turns frames into typed events and reconnects after drops.
//
// State moves Disconnected -> Connecting -> Connected and back to
// Disconnected when the socket closes. After a close the relay waits as
// its ReconnectPolicy says and dials again; when the policy gives up it
// emits max_reconnect_attempts and stays down until Connect is called
// again. Listeners run synchronously on the relay's goroutine in
// registration order, and a panicking listener does not stop delivery to
// the rest.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/metrics"
)

// ErrNotConnected is returned by Send when there is no open socket. The
// message is dropped, never queued.
var ErrNotConnected = errors.New("relay: not connected")

// Defaults for Options.
const (
	DefaultHeartbeat        = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ConnectionState is a snapshot returned by Status.
type ConnectionState struct {
	State             State  `json:"state"`
	IsConnected       bool   `json:"is_connected"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
	URL               string `json:"url,omitempty"`
}

// Listener receives events.
type Listener func(Event)

// Options configures a Relay.
type Options struct {
	Policy           ReconnectPolicy
	Heartbeat        time.Duration
	HandshakeTimeout time.Duration
	// Token supplies the bearer token sent at dial time.
	Token   func() string
	Metrics metrics.Recorder
	// Now stamps ping frames.
	Now func() time.Time
}

type entry struct {
	id uint64
	fn Listener
}

// Relay is the realtime event relay. The zero value is not usable; call New.
type Relay struct {
	policy    ReconnectPolicy
	heartbeat time.Duration
	dialer    *websocket.Dialer
	token     func() string
	metrics   metrics.Recorder
	now       func() time.Time
	logger    zerolog.Logger

	hooks hooks

	mu       sync.Mutex
	state    State
	attempts int
	url      string
	conn     *websocket.Conn
	running  bool
	gen      uint64
	cancel   context.CancelFunc

	writeMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[Kind][]entry
	any    []entry
	nextID uint64
}

// New creates a disconnected Relay.
func New(opts Options) *Relay {
	r := &Relay{
		policy:    opts.Policy,
		heartbeat: opts.Heartbeat,
		token:     opts.Token,
		metrics:   opts.Metrics,
		now:       opts.Now,
		logger:    logging.Component("relay"),
		subs:      make(map[Kind][]entry),
	}
	if r.policy == nil {
		r.policy = DefaultFlatPolicy()
	}
	if r.heartbeat <= 0 {
		r.heartbeat = DefaultHeartbeat
	}
	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = DefaultHandshakeTimeout
	}
	r.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}
	if r.token == nil {
		r.token = func() string { return "" }
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// SocketURL derives the websocket URL from a REST base URL: http becomes ws,
// https becomes wss and /ws is appended to the path.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Connect starts the relay against baseURL and returns immediately; the
// outcome is reported through events. It is a no-op while the relay is
// already running. After a terminal stop it starts over with a fresh
// attempt counter. Canceling ctx stops the relay like Disconnect but keeps
// listeners.
func (r *Relay) Connect(ctx context.Context, baseURL string) error {
	wsURL, err := SocketURL(baseURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	r.gen++
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.url = wsURL
	r.attempts = 0
	r.state = Connecting

	go r.run(runCtx, r.gen)
	return nil
}

// Disconnect stops the relay for good: any pending reconnect is canceled,
// the socket is closed and every listener is removed. Hooks are kept.
func (r *Relay) Disconnect() {
	r.mu.Lock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	conn := r.conn
	r.conn = nil
	wasConnected := r.state == Connected
	r.state = Disconnected
	r.running = false
	r.mu.Unlock()

	if conn != nil {
		r.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		r.writeMu.Unlock()
		_ = conn.Close()
	}
	if wasConnected {
		r.metrics.SetRelayConnected(false)
	}

	r.subsMu.Lock()
	r.subs = make(map[Kind][]entry)
	r.any = nil
	r.subsMu.Unlock()

	r.logger.Debug().Msg("disconnected")
}

// Status returns the current connection state.
func (r *Relay) Status() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ConnectionState{
		State:             r.state,
		IsConnected:       r.state == Connected,
		ReconnectAttempts: r.attempts,
		URL:               r.url,
	}
}

// Send writes v as a JSON text frame. When not connected the message is
// dropped with a warning and ErrNotConnected is returned.
func (r *Relay) Send(v any) error {
	r.mu.Lock()
	conn := r.conn
	connected := r.state == Connected
	r.mu.Unlock()

	if !connected || conn == nil {
		r.logger.Warn().Msg("cannot send, not connected")
		r.runOnDrop(v)
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("relay send: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("relay send: %w", err)
	}
	return nil
}

// run dials, reads until the socket closes and reconnects per policy until
// the policy gives up or the run is canceled.
func (r *Relay) run(ctx context.Context, gen uint64) {
	defer func() {
		r.mu.Lock()
		if r.gen == gen {
			r.running = false
			r.state = Disconnected
			if r.cancel != nil {
				r.cancel()
				r.cancel = nil
			}
		}
		r.mu.Unlock()
	}()

	for {
		reason := r.session(ctx, gen)
		if ctx.Err() != nil || !r.current(gen) {
			return
		}

		r.setState(gen, Disconnected)
		r.emit(local(KindDisconnected, &DisconnectedEvent{Reason: reason}))

		r.mu.Lock()
		next := r.attempts + 1
		r.mu.Unlock()

		delay, ok := r.policy.Next(next)
		if !ok {
			r.mu.Lock()
			attempts := r.attempts
			if r.gen == gen {
				r.running = false
				if r.cancel != nil {
					r.cancel()
					r.cancel = nil
				}
			}
			r.mu.Unlock()

			r.logger.Warn().Int("attempts", attempts).Msg("max reconnect attempts reached")
			r.emit(local(KindMaxReconnectAttempts, &MaxReconnectEvent{Attempts: attempts}))
			return
		}

		r.mu.Lock()
		if r.gen == gen {
			r.attempts = next
		}
		r.mu.Unlock()
		r.metrics.RecordReconnect()
		r.logger.Info().Int("attempt", next).Dur("delay", delay).Msg("reconnecting")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		r.setState(gen, Connecting)
	}
}

// session performs one dial and read loop and returns why it ended.
func (r *Relay) session(ctx context.Context, gen uint64) string {
	r.mu.Lock()
	target := r.url
	r.mu.Unlock()

	header := http.Header{}
	if token := r.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := r.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		r.logger.Warn().Err(err).Str("url", target).Msg("connection failed")
		r.emit(local(KindError, &ErrorEvent{Message: "connection failed", Err: err}))
		return err.Error()
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		_ = conn.Close()
		return ""
	}
	r.conn = conn
	r.state = Connected
	r.attempts = 0
	r.mu.Unlock()

	r.metrics.SetRelayConnected(true)
	r.logger.Info().Str("url", target).Msg("connected")
	r.emit(local(KindConnected, &ConnectedEvent{URL: target}))

	beatCtx, stopBeat := context.WithCancel(ctx)
	defer stopBeat()
	go r.beat(beatCtx)

	// Close the socket when the run is canceled so ReadMessage returns.
	go func() {
		<-beatCtx.Done()
		_ = conn.Close()
	}()

	reason := r.read(conn)

	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
	r.metrics.SetRelayConnected(false)
	return reason
}

func (r *Relay) read(conn *websocket.Conn) string {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Sprintf("closed: %d %s", ce.Code, ce.Text)
			}
			return err.Error()
		}
		r.handleFrame(msg)
	}
}

func (r *Relay) handleFrame(frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		if errors.Is(err, errNoType) {
			r.logger.Debug().Msg("frame without type ignored")
			return
		}
		if ev == nil {
			r.logger.Warn().Err(err).Msg("dropping undecodable frame")
			return
		}
		r.logger.Warn().Err(err).Str("type", string(ev.Kind())).Msg("delivering event without payload")
	}
	r.emit(ev)
}

// beat sends a ping on every heartbeat tick. A missing pong is not treated
// as a failure; the transport's own close ends the session.
func (r *Relay) beat(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := map[string]any{"type": KindPing, "timestamp": r.now().UnixMilli()}
			if err := r.Send(ping); err != nil && !errors.Is(err, ErrNotConnected) {
				r.logger.Debug().Err(err).Msg("ping failed")
			}
		}
	}
}

func (r *Relay) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}

func (r *Relay) setState(gen uint64, s State) {
	r.mu.Lock()
	if r.gen == gen {
		r.state = s
	}
	r.mu.Unlock()
}

// emit delivers ev to OnAny listeners and to listeners of ev.Kind(), each
// in registration order. Every listener is isolated by its own recover.
func (r *Relay) emit(ev Event) {
	r.metrics.RecordRelayEvent(string(ev.Kind()))
	r.runOnEvent(ev)

	r.subsMu.RLock()
	targets := make([]entry, 0, len(r.any)+len(r.subs[ev.Kind()]))
	targets = append(targets, r.any...)
	targets = append(targets, r.subs[ev.Kind()]...)
	r.subsMu.RUnlock()

	for _, t := range targets {
		r.deliver(t.fn, ev)
	}
}

func (r *Relay) deliver(fn Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("event", string(ev.Kind())).
				Interface("panic", rec).
				Msg("listener panicked")
			r.runOnPanic(ev, rec)
		}
	}()
	fn(ev)
}
