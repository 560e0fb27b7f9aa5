package dropzy

import (
	"context"
	"time"

	"github.com/dropzy/dropzy/internal/core/relay"
)

// Status summarizes the client state for the status command and the debug
// server.
type Status struct {
	BaseURL       string         `json:"base_url"`
	Online        bool           `json:"online"`
	Authenticated bool           `json:"authenticated"`
	User          string         `json:"user,omitempty"`
	CacheEnabled  bool           `json:"cache_enabled"`
	CacheEntries  int            `json:"cache_entries"`
	CacheBytes    int64          `json:"cache_bytes"`
	Unread        int            `json:"unread"`
	Notifications int            `json:"notifications"`
	Relay         RelayStatus    `json:"relay"`
	CheckedAt     time.Time      `json:"checked_at"`
	Errors        map[string]any `json:"errors,omitempty"`
}

// RelayStatus is the JSON form of relay.ConnectionState.
type RelayStatus struct {
	State             string `json:"state"`
	Connected         bool   `json:"connected"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
	URL               string `json:"url,omitempty"`
}

// Status gathers the current state. probe forces a connectivity check
// instead of reusing the last verdict.
func (a *App) Status(ctx context.Context, probe bool) Status {
	s := Status{
		BaseURL:       a.Bootstrap.URL(),
		Authenticated: a.Session.IsAuthenticated(),
		CacheEnabled:  a.Client.CacheEnabled(),
		Unread:        a.Ledger.UnreadCount(),
		Notifications: len(a.Ledger.Notifications()),
		Relay:         relayStatus(a.Relay.Status()),
		CheckedAt:     time.Now(),
	}

	if probe {
		s.Online = a.Network.Check(ctx)
	} else {
		s.Online = a.Network.Reachable(ctx)
	}

	if u, ok := a.Session.User(); ok {
		s.User = u.Email
	}

	errs := map[string]any{}
	if keys, err := a.Cache.Keys(ctx); err != nil {
		errs["cache_keys"] = err.Error()
	} else {
		s.CacheEntries = len(keys)
	}
	if size, err := a.Cache.Size(ctx); err != nil {
		errs["cache_size"] = err.Error()
	} else {
		s.CacheBytes = size
	}
	if len(errs) > 0 {
		s.Errors = errs
	}
	return s
}

// DebugStatus adapts Status for profiler.StatusFunc.
func (a *App) DebugStatus(ctx context.Context) any {
	return a.Status(ctx, false)
}

func relayStatus(cs relay.ConnectionState) RelayStatus {
	return RelayStatus{
		State:             cs.State.String(),
		Connected:         cs.IsConnected,
		ReconnectAttempts: cs.ReconnectAttempts,
		URL:               cs.URL,
	}
}
