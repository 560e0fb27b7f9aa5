// Package api is the resilient HTTP client for the dropzy backend.
//
// A request goes through four stages: a fresh cache hit short-circuits GETs,
// a connectivity check fails fast when offline, the request is dispatched
// with exponential backoff on retryable failures, and successful GETs are
// written back to the cache. GETs that cannot reach the server fall back to
// any cached copy, fresh or stale.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dropzy/dropzy/internal/core/cache"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/netstat"
	"github.com/dropzy/dropzy/internal/core/session"
	"github.com/dropzy/dropzy/internal/metrics"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultBaseDelay = time.Second
)

// Source tells where a response came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceCache          // fresh cache hit
	SourceStale          // cached copy served because the server was unreachable
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceStale:
		return "stale"
	default:
		return "network"
	}
}

// Request describes one API call.
type Request struct {
	Method   string
	Endpoint string
	// Params are sent as the query string and form part of the cache key.
	Params map[string]any
	// Body is JSON encoded.
	Body any
	// NoAuth omits the bearer token.
	NoAuth bool
	// NoCache bypasses the cache for this GET.
	NoCache bool
	// TTL overrides the cache default for this GET.
	TTL time.Duration
}

// Response is a successful result.
type Response struct {
	Data   json.RawMessage
	Source Source
}

// Options configures a Client. BaseURL and Session are required.
type Options struct {
	BaseURL func() string
	Session *session.Manager
	Cache   *cache.Store
	Network netstat.Checker

	HTTPClient *http.Client
	Timeout    time.Duration
	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retrying.
	MaxRetries int
	BaseDelay  time.Duration
	Limiter    *rate.Limiter
	Metrics    metrics.Recorder

	// Sleep waits between attempts. Tests replace it to run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

// observer is implemented by checkers that learn from request outcomes.
type observer interface {
	Observe(online bool)
}

// Client performs API requests.
type Client struct {
	baseURL    func() string
	session    *session.Manager
	cache      *cache.Store
	network    netstat.Checker
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
	metrics    metrics.Recorder
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger

	cacheEnabled atomic.Bool
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    opts.BaseURL,
		session:    opts.Session,
		cache:      opts.Cache,
		network:    opts.Network,
		http:       opts.HTTPClient,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		sleep:      opts.Sleep,
		logger:     logging.Component("api"),
	}

	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	c.cacheEnabled.Store(opts.Cache != nil)
	return c
}

// SetCacheEnabled turns response caching on or off for all requests.
func (c *Client) SetCacheEnabled(enabled bool) {
	c.cacheEnabled.Store(enabled && c.cache != nil)
}

// CacheEnabled reports whether responses are cached.
func (c *Client) CacheEnabled() bool { return c.cacheEnabled.Load() }

// BaseURL returns the URL requests are currently sent to.
func (c *Client) BaseURL() string { return c.baseURL() }

// Session returns the session manager used for bearer tokens.
func (c *Client) Session() *session.Manager { return c.session }

// Do performs req.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	isGet := method == http.MethodGet
	useCache := isGet && !req.NoCache && c.cacheEnabled.Load()

	requestID := uuid.NewString()
	ctx = logging.WithEndpoint(logging.WithRequestID(ctx, requestID), req.Endpoint)

	var key string
	if useCache {
		key = cache.Key(method, req.Endpoint, req.Params)
		if res := c.cache.Lookup(ctx, key); res.State == cache.Fresh {
			c.metrics.RecordCacheLookup("fresh")
			c.logger.Debug().Ctx(ctx).Dur("age", res.Age).Msg("cache hit")
			return &Response{Data: res.Data, Source: SourceCache}, nil
		}
		c.metrics.RecordCacheLookup("miss")
	}

	if c.network != nil && !c.network.Reachable(ctx) {
		if !isGet {
			c.logger.Warn().Ctx(ctx).Str("method", method).Msg("offline, refusing request")
			return nil, &Error{Kind: KindOffline, Message: MsgOfflineAction}
		}
		if resp := c.fallback(ctx, key, useCache); resp != nil {
			return resp, nil
		}
		return nil, &Error{Kind: KindOffline, Message: MsgOffline}
	}

	data, apiErr := c.send(ctx, method, req, requestID)
	if apiErr != nil {
		if apiErr.Kind == KindAuth && c.session != nil {
			if err := c.session.Clear(ctx); err != nil {
				c.logger.Error().Ctx(ctx).Err(err).Msg("failed to clear session after 401")
			}
		}
		if isGet && apiErr.Retryable() {
			if resp := c.fallback(ctx, key, useCache); resp != nil {
				return resp, nil
			}
		}
		return nil, apiErr
	}

	if useCache {
		if err := c.cache.Set(ctx, key, data, req.TTL); err != nil {
			c.logger.Warn().Ctx(ctx).Err(err).Msg("cache write failed")
		}
	}
	return &Response{Data: data, Source: SourceNetwork}, nil
}

// Request performs req and returns only the payload.
func (c *Client) Request(ctx context.Context, req Request) (json.RawMessage, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any) (json.RawMessage, error) {
	return c.Request(ctx, Request{Method: http.MethodGet, Endpoint: endpoint, Params: params})
}

// Post performs an authenticated POST.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Request(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body})
}

// Put performs an authenticated PUT.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Request(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: body})
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Request(ctx, Request{Method: http.MethodDelete, Endpoint: endpoint})
}

func (c *Client) fallback(ctx context.Context, key string, useCache bool) *Response {
	if !useCache {
		return nil
	}
	res := c.cache.Lookup(ctx, key)
	if res.State == cache.Absent {
		return nil
	}
	c.metrics.RecordCacheLookup("stale")
	c.logger.Info().Ctx(ctx).Dur("age", res.Age).Stringer("state", res.State).Msg("serving cached copy")
	return &Response{Data: res.Data, Source: SourceStale}
}

// send runs the retry loop. Delays double from baseDelay: base, 2*base,
// 4*base, for at most maxRetries retries.
func (c *Client) send(ctx context.Context, method string, req Request, requestID string) (json.RawMessage, *Error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			c.metrics.RecordRetry(method)
			c.logger.Debug().Ctx(ctx).Int("attempt", attempt).Dur("delay", delay).Msg("retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &Error{Kind: KindNetwork, Message: MsgUnreachable, Err: err}
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &Error{Kind: KindNetwork, Message: MsgUnreachable, Err: err}
			}
		}

		data, apiErr := c.attempt(ctx, method, req, requestID)
		if apiErr == nil {
			return data, nil
		}

		if !apiErr.Retryable() || attempt >= c.maxRetries || ctx.Err() != nil {
			c.logger.Warn().Ctx(ctx).
				Str("method", method).
				Int("status", apiErr.Status).
				Int("attempts", attempt+1).
				Err(apiErr.Err).
				Msg(apiErr.Message)
			return nil, apiErr
		}
	}
}

func (c *Client) attempt(parent context.Context, method string, req Request, requestID string) (json.RawMessage, *Error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	target, err := c.url(req.Endpoint, req.Params)
	if err != nil {
		return nil, &Error{Kind: KindStatus, Message: MsgBadRequest, Err: err}
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindStatus, Message: MsgBadRequest, Err: fmt.Errorf("encode body: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindStatus, Message: MsgBadRequest, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.NoAuth && c.session != nil {
		if token := c.session.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		// a canceled caller says nothing about the network
		if parent.Err() == nil {
			c.observe(false)
		}
		c.metrics.RecordRequest(method, 0, time.Since(start))
		return nil, &Error{Kind: KindNetwork, Message: MsgUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(true)

	raw, err := io.ReadAll(resp.Body)
	c.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: MsgUnreachable, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, &Error{
			Kind:    KindDecode,
			Status:  resp.StatusCode,
			Message: MsgInvalidBody,
			Err:     errors.New("response body is not JSON"),
		}
	}
	return raw, nil
}

func (c *Client) url(endpoint string, params map[string]any) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.baseURL(), "/") + endpoint)
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := params[name]
		if v == nil {
			continue
		}
		q.Set(name, fmt.Sprint(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) observe(online bool) {
	if o, ok := c.network.(observer); ok {
		o.Observe(online)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
