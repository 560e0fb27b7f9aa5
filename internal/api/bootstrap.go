package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/validate"
)

// ErrIncompatible is returned by Probe when the server is older than the
// configured minimum version.
var ErrIncompatible = errors.New("server version is not supported")

// ErrUnhealthy is returned by Probe when /health answers without
// status "healthy".
var ErrUnhealthy = errors.New("server is not healthy")

// Health is the body of GET /health.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
}

// BootstrapOptions configures base URL resolution.
type BootstrapOptions struct {
	BaseURL          string
	FallbackURL      string
	ProbeTimeout     time.Duration
	MinServerVersion string
	HTTPClient       *http.Client
}

// Bootstrap decides which base URL the client talks to. A URL persisted
// under kv.KeyAPIURL wins; otherwise the primary and fallback URLs are
// probed in order and the first healthy one is persisted.
type Bootstrap struct {
	urls       *kv.TypedKV[string]
	primary    string
	fallback   string
	minVersion string
	http       *http.Client
	logger     zerolog.Logger

	mu      sync.RWMutex
	current string
}

// NewBootstrap creates a Bootstrap. URL returns the primary URL until
// Resolve or SetAPIURL runs.
func NewBootstrap(store kv.Store, opts BootstrapOptions) *Bootstrap {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.ProbeTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Bootstrap{
		urls:       kv.Typed[string](store),
		primary:    opts.BaseURL,
		fallback:   opts.FallbackURL,
		minVersion: opts.MinServerVersion,
		http:       client,
		logger:     logging.Component("bootstrap"),
		current:    opts.BaseURL,
	}
}

// URL returns the active base URL.
func (b *Bootstrap) URL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Resolve picks the active base URL and returns it. It never fails because
// no server answered: the primary URL is used without being persisted.
func (b *Bootstrap) Resolve(ctx context.Context) (string, error) {
	saved, err := b.urls.Get(ctx, kv.KeyAPIURL)
	switch {
	case err == nil && saved != "":
		b.setCurrent(saved)
		b.logger.Debug().Str("url", saved).Msg("using saved api url")
		return saved, nil
	case err != nil && !kv.IsNotFound(err):
		return "", fmt.Errorf("read saved api url: %w", err)
	}

	for _, candidate := range []string{b.primary, b.fallback} {
		if candidate == "" {
			continue
		}
		if _, err := b.Probe(ctx, candidate); err != nil {
			b.logger.Info().Err(err).Str("url", candidate).Msg("api url probe failed")
			continue
		}
		if err := b.urls.Set(ctx, kv.KeyAPIURL, candidate); err != nil {
			return "", fmt.Errorf("save api url: %w", err)
		}
		b.setCurrent(candidate)
		b.logger.Info().Str("url", candidate).Msg("api url resolved")
		return candidate, nil
	}

	b.logger.Warn().Str("url", b.primary).Msg("no api url answered, using default")
	b.setCurrent(b.primary)
	return b.primary, nil
}

// SetAPIURL validates raw, optionally probes it, then persists and activates it.
func (b *Bootstrap) SetAPIURL(ctx context.Context, raw string, probe bool) error {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if err := validate.BaseURL(raw); err != nil {
		return err
	}
	if probe {
		if _, err := b.Probe(ctx, raw); err != nil {
			return err
		}
	}
	if err := b.urls.Set(ctx, kv.KeyAPIURL, raw); err != nil {
		return fmt.Errorf("save api url: %w", err)
	}
	b.setCurrent(raw)
	return nil
}

// ResetAPIURL forgets the persisted URL. The next Resolve probes again.
func (b *Bootstrap) ResetAPIURL(ctx context.Context) error {
	if err := b.urls.Delete(ctx, kv.KeyAPIURL); err != nil {
		return fmt.Errorf("reset api url: %w", err)
	}
	b.setCurrent(b.primary)
	return nil
}

// Probe calls <baseURL>/health and checks the reported status and version.
func (b *Bootstrap) Probe(ctx context.Context, baseURL string) (Health, error) {
	target := strings.TrimRight(baseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Health{}, fmt.Errorf("probe %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("probe %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Health{}, fmt.Errorf("probe %s: read body: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("probe %s: %w: status %d", target, ErrUnhealthy, resp.StatusCode)
	}

	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		return Health{}, fmt.Errorf("probe %s: decode: %w", target, err)
	}
	if h.Status != "healthy" {
		return h, fmt.Errorf("probe %s: %w: status %q", target, ErrUnhealthy, h.Status)
	}

	if err := checkVersion(h.Version, b.minVersion); err != nil {
		return h, fmt.Errorf("probe %s: %w", target, err)
	}
	return h, nil
}

func (b *Bootstrap) setCurrent(u string) {
	b.mu.Lock()
	b.current = u
	b.mu.Unlock()
}

// checkVersion compares semantic versions with or without a leading "v".
// Servers that do not report a version are accepted.
func checkVersion(have, minimum string) error {
	if minimum == "" || have == "" {
		return nil
	}
	h, m := canonical(have), canonical(minimum)
	if !semver.IsValid(h) {
		return fmt.Errorf("%w: unparseable version %q", ErrIncompatible, have)
	}
	if semver.Compare(h, m) < 0 {
		return fmt.Errorf("%w: server %s, need %s or newer", ErrIncompatible, have, minimum)
	}
	return nil
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
