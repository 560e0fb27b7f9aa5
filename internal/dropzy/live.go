package dropzy

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/core/cache"
	"github.com/dropzy/dropzy/internal/core/ledger"
	"github.com/dropzy/dropzy/internal/core/relay"
	"github.com/dropzy/dropzy/internal/livesync"
)

// LiveOptions selects which background workers StartLive runs.
type LiveOptions struct {
	Relay  bool
	Poll   bool
	Sweep  bool
	Router bool
}

// Live is a running set of background workers.
type Live struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	subs   []relay.Subscription
	relay  *relay.Relay
}

// StartLive connects the relay and starts the selected workers: the ledger
// router and cache invalidator listen on the relay, the poller copies
// new-order notifications and the sweeper clears expired cache entries.
func (a *App) StartLive(ctx context.Context, opts LiveOptions) (*Live, error) {
	ctx, cancel := context.WithCancel(ctx)
	l := &Live{cancel: cancel, relay: a.Relay}

	if opts.Router {
		l.subs = append(l.subs, ledger.NewRouter(ctx, a.Ledger).Register(a.Relay)...)
	}
	if opts.Relay {
		l.subs = append(l.subs, livesync.NewInvalidator(ctx, a.Cache).Register(a.Relay))
		if err := a.Relay.Connect(ctx, a.Bootstrap.URL()); err != nil {
			l.Stop()
			return nil, err
		}
	}

	if opts.Poll {
		poller := livesync.NewPoller(a.API, a.Ledger, a.Store, a.Config.Notifications.PollInterval)
		l.wg.Go(func() {
			if err := poller.Run(ctx); err != nil {
				if api.IsAuth(err) {
					log.Warn().Err(err).Msg("notification polling stopped, log in again")
					return
				}
				log.Error().Err(err).Msg("notification polling stopped")
			}
		})
	}

	if opts.Sweep {
		l.wg.Go(func() {
			cache.Sweep(ctx, a.Cache, a.Config.Cache.SweepInterval)
		})
	}

	return l, nil
}

// Stop cancels the workers, removes the relay listeners and waits for the
// goroutines to return.
func (l *Live) Stop() {
	l.cancel()
	for _, s := range l.subs {
		s.Unsubscribe()
	}
	l.wg.Wait()
}
