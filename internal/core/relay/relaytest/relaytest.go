// Package relaytest provides a websocket test server and an event recorder
// for code built on the relay.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dropzy/dropzy/internal/core/relay"
)

// Recorder captures every event a relay emits.
type Recorder struct {
	mu     sync.Mutex
	events []relay.Event
}

// Record attaches a Recorder to r with OnAny.
func Record(r *relay.Relay) *Recorder {
	rec := &Recorder{}
	r.OnAny(rec.record)
	return rec
}

func (rec *Recorder) record(ev relay.Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.events = append(rec.events, ev)
}

// Events returns a copy of all recorded events.
func (rec *Recorder) Events() []relay.Event {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]relay.Event, len(rec.events))
	copy(out, rec.events)
	return out
}

// Kinds returns the kinds of all recorded events in order.
func (rec *Recorder) Kinds() []relay.Kind {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]relay.Kind, len(rec.events))
	for i, ev := range rec.events {
		out[i] = ev.Kind()
	}
	return out
}

// Count returns how many events of kind were recorded.
func (rec *Recorder) Count(kind relay.Kind) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, ev := range rec.events {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

// Reset clears all recorded events.
func (rec *Recorder) Reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.events = nil
}

// WaitFor blocks until an event of kind is recorded or the timeout expires.
func (rec *Recorder) WaitFor(kind relay.Kind, timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return false
		case <-ticker.C:
			if rec.Count(kind) > 0 {
				return true
			}
		}
	}
}

// Server is an httptest server speaking the relay protocol on /ws.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader
	dials    atomic.Int32
	refuse   atomic.Bool

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
	headers  []http.Header
	accepted chan *websocket.Conn
}

// NewServer starts a server that upgrades /ws and records inbound frames.
// It is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{accepted: make(chan *websocket.Conn, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.dials.Add(1)
	if s.refuse.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	select {
	case s.accepted <- conn:
	default:
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()
	}
}

// Refuse makes the server answer dials with 503 instead of upgrading.
func (s *Server) Refuse(refuse bool) { s.refuse.Store(refuse) }

// Dials returns how many dials reached /ws.
func (s *Server) Dials() int { return int(s.dials.Load()) }

// Accept waits for the next upgraded connection.
func (s *Server) Accept(t *testing.T, timeout time.Duration) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.accepted:
		return conn
	case <-time.After(timeout):
		t.Fatalf("no websocket connection within %s", timeout)
		return nil
	}
}

// Push sends v as a JSON frame to every open connection.
func (s *Server) Push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	s.PushRaw(t, data)
}

// PushRaw sends data verbatim to every open connection.
func (s *Server) PushRaw(t *testing.T, data []byte) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.WriteMessage(websocket.TextMessage, data)
	}
}

// DropAll closes every open connection from the server side.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// Received returns copies of the frames received so far.
func (s *Server) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

// Headers returns the request headers of each accepted dial.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}
