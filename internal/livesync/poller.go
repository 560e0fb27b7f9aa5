// Package livesync keeps local state in step with the server: it polls for
// new-order notifications and drops cached responses that push events made
// stale.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/notify"
)

// DefaultSeenLimit bounds the persisted set of remote ids already recorded.
const DefaultSeenLimit = 500

// OrdersSource is satisfied by *api.Service.
type OrdersSource interface {
	NewOrders(ctx context.Context) (api.NewOrders, error)
}

// Recorder is satisfied by *ledger.Ledger.
type Recorder interface {
	Add(ctx context.Context, d notify.Draft) (notify.Notification, error)
}

// Poller copies unseen remote notifications into the ledger.
type Poller struct {
	source    OrdersSource
	ledger    Recorder
	seen      *kv.TypedKV[[]string]
	interval  time.Duration
	seenLimit int
	logger    zerolog.Logger
}

// NewPoller creates a poller. The seen set lives in store under
// kv.KeySeenRemote so restarts do not duplicate entries.
func NewPoller(source OrdersSource, ledger Recorder, store kv.Store, interval time.Duration) *Poller {
	return &Poller{
		source:    source,
		ledger:    ledger,
		seen:      kv.Typed[[]string](store),
		interval:  interval,
		seenLimit: DefaultSeenLimit,
		logger:    logging.Component("poller"),
	}
}

// Run polls immediately and then on every interval until ctx ends or the
// session is rejected. Other fetch errors are logged and retried on the next
// tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil {
			if api.IsAuth(err) {
				return err
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			p.logger.Warn().Err(err).Msg("poll failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches once and returns how many notifications were added.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	res, err := p.source.NewOrders(ctx)
	if err != nil {
		return 0, err
	}

	seen, err := p.seen.Get(ctx, kv.KeySeenRemote)
	if err != nil && !kv.IsNotFound(err) {
		return 0, fmt.Errorf("load seen notifications: %w", err)
	}
	known := make(map[string]bool, len(seen))
	for _, id := range seen {
		known[id] = true
	}

	added := 0
	// The server lists newest first; record oldest first so the ledger keeps
	// the same order.
	for i := len(res.Notifications) - 1; i >= 0; i-- {
		rn := res.Notifications[i]
		if rn.ID == "" || known[rn.ID] {
			continue
		}
		known[rn.ID] = true
		seen = append(seen, rn.ID)
		if rn.Read {
			continue
		}

		if _, err := p.ledger.Add(ctx, draft(rn)); err != nil {
			p.logger.Warn().Err(err).Str("remote_id", rn.ID).Msg("record notification failed")
		}
		added++
	}

	if len(seen) > p.seenLimit {
		seen = seen[len(seen)-p.seenLimit:]
	}
	if err := p.seen.Set(ctx, kv.KeySeenRemote, seen); err != nil {
		return added, fmt.Errorf("save seen notifications: %w", err)
	}

	p.logger.Debug().Int("pending_orders", res.PendingOrders).Int("added", added).Msg("polled notifications")
	return added, nil
}

func draft(rn api.RemoteNotification) notify.Draft {
	d := notify.Draft{
		Type:    notify.Type(rn.Type),
		Title:   rn.Title,
		Message: rn.Message,
	}
	switch d.Type {
	case notify.TypeNewOrder:
		d.Icon, d.Color = "cart", "#10b981"
	case notify.TypeOrderProcessed:
		d.Icon = "checkmark-circle"
	case "":
		d.Type = notify.TypeInfo
	}
	return d
}
