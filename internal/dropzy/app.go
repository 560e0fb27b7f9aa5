// Package dropzy assembles the client components into one App that commands
// and background workers share.
package dropzy

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/core/cache"
	"github.com/dropzy/dropzy/internal/core/config"
	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/ledger"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/netstat"
	"github.com/dropzy/dropzy/internal/core/notify"
	"github.com/dropzy/dropzy/internal/core/relay"
	"github.com/dropzy/dropzy/internal/core/session"
	"github.com/dropzy/dropzy/internal/data/credential"
	"github.com/dropzy/dropzy/internal/data/db"
	"github.com/dropzy/dropzy/internal/data/stores"
	"github.com/dropzy/dropzy/internal/metrics"
)

// App is the central entry point for all dropzy operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Config *config.Config

	DB      *db.DB // nil for ephemeral apps
	Store   kv.Store
	Session *session.Manager
	Cache   *cache.Store
	Network *netstat.Monitor

	Bootstrap *api.Bootstrap
	Client    *api.Client
	API       *api.Service

	Relay  *relay.Relay
	Ledger *ledger.Ledger

	Metrics  *metrics.Collector
	Registry *prometheus.Registry
}

// Options selects how New builds the App.
type Options struct {
	// Ephemeral keeps all state in memory and never touches the data
	// directory.
	Ephemeral bool
	// Store overrides the device store. Used by tests.
	Store kv.Store
	// Pusher receives ledger notifications. Defaults to notify.NopPusher.
	Pusher notify.Pusher
}

// New opens storage, restores the session and wires every component. The
// base URL is not resolved; call ResolveURL before talking to the server.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	switch {
	case opts.Store != nil:
		a.Store = opts.Store
	case opts.Ephemeral:
		a.Store = kv.NewMemory()
	default:
		database, err := openDatabase(cfg)
		if err != nil {
			return nil, err
		}
		a.DB = database
		a.Store = stores.NewKVStore(database)
	}

	vault, err := newVault(cfg, a.Store, opts.Ephemeral)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Session = session.NewManager(vault)
	if err := a.Session.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore session")
	}

	a.Registry = prometheus.NewRegistry()
	a.Metrics = metrics.NewCollector(a.Registry)

	a.Cache = cache.New(a.Store, cache.WithTTL(cfg.Cache.TTL))

	a.Bootstrap = api.NewBootstrap(a.Store, api.BootstrapOptions{
		BaseURL:          cfg.API.BaseURL,
		FallbackURL:      cfg.API.FallbackURL,
		ProbeTimeout:     cfg.API.ProbeTimeout,
		MinServerVersion: cfg.API.MinServerVersion,
	})
	a.Network = netstat.NewMonitor(a.Bootstrap.URL, cfg.API.ProbeTimeout)

	a.Client = api.NewClient(api.Options{
		BaseURL:    a.Bootstrap.URL,
		Session:    a.Session,
		Cache:      a.Cache,
		Network:    a.Network,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		BaseDelay:  cfg.API.RetryBaseDelay,
		Limiter:    newLimiter(cfg.API),
		Metrics:    a.Metrics,
	})
	a.Client.SetCacheEnabled(cfg.Cache.IsEnabled())
	a.API = api.NewService(a.Client)

	a.Relay = relay.New(relay.Options{
		Policy:           PolicyFor(cfg.Relay),
		Heartbeat:        cfg.Relay.HeartbeatInterval,
		HandshakeTimeout: cfg.Relay.HandshakeTimeout,
		Token:            a.Session.Token,
		Metrics:          a.Metrics,
	})
	if log.Logger.GetLevel() <= zerolog.DebugLevel {
		relay.RegisterDebugLogger(a.Relay, logging.Component("relay.debug"))
	}

	a.Ledger = ledger.New(a.Store, ledger.Options{
		Capacity: cfg.Notifications.Capacity,
		Pusher:   opts.Pusher,
		Metrics:  a.Metrics,
	})
	if err := a.Ledger.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("could not load notifications")
	}

	return a, nil
}

// ResolveURL picks the API base URL. See api.Bootstrap.Resolve.
func (a *App) ResolveURL(ctx context.Context) (string, error) {
	return a.Bootstrap.Resolve(ctx)
}

// Close disconnects the relay and closes the database.
func (a *App) Close() error {
	if a.Relay != nil {
		a.Relay.Disconnect()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

// PolicyFor builds the relay reconnect policy from configuration.
func PolicyFor(cfg config.RelayConfig) relay.ReconnectPolicy {
	if cfg.Reconnect == config.ReconnectExponential {
		return relay.ExponentialPolicy{
			Base:        cfg.ReconnectDelay,
			Max:         cfg.ReconnectMaxDelay,
			MaxAttempts: cfg.MaxReconnectAttempts,
		}
	}
	return relay.FlatPolicy{
		Interval:    cfg.ReconnectDelay,
		MaxAttempts: cfg.MaxReconnectAttempts,
	}
}

func newLimiter(cfg config.APIConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
}

func newVault(cfg *config.Config, store kv.Store, ephemeral bool) (session.Vault, error) {
	if ephemeral || cfg.Auth.TokenStore != config.TokenStoreKeyring {
		return session.NewStorageVault(store), nil
	}
	ring, err := credential.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return credential.NewKeyringVault(ring, store), nil
}

// openDatabase opens the device store, moving a corrupt database aside and
// starting fresh once.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log.Warn().Err(err).Msg("device store is corrupt, starting fresh")
	if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	database, err = db.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}
