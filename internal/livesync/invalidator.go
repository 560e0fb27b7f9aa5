package livesync

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/cache"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/relay"
)

const dashboardPrefix = "/api/dashboard"

// Invalidator removes cached GET responses for the resource a push event
// concerns, so the next read goes to the network.
type Invalidator struct {
	ctx    context.Context
	cache  *cache.Store
	logger zerolog.Logger
}

// NewInvalidator creates an invalidator over c. ctx bounds the storage
// deletes made from relay callbacks.
func NewInvalidator(ctx context.Context, c *cache.Store) *Invalidator {
	return &Invalidator{ctx: ctx, cache: c, logger: logging.Component("invalidator")}
}

// Register subscribes to every relay event.
func (inv *Invalidator) Register(r *relay.Relay) relay.Subscription {
	return r.OnAny(inv.Handle)
}

// Handle drops the cache entries ev makes stale.
func (inv *Invalidator) Handle(ev relay.Event) {
	prefixes := Prefixes(ev.Kind())
	if len(prefixes) == 0 {
		return
	}

	n, err := inv.cache.RemoveMatching(inv.ctx, func(key string) bool {
		for _, p := range prefixes {
			if matchesEndpoint(key, p) {
				return true
			}
		}
		return false
	})
	if err != nil {
		inv.logger.Warn().Err(err).Str("event", string(ev.Kind())).Msg("cache invalidation failed")
		return
	}
	if n > 0 {
		inv.logger.Debug().Str("event", string(ev.Kind())).Int("removed", n).Msg("invalidated cache")
	}
}

// Prefixes returns the endpoint prefixes a kind invalidates.
func Prefixes(kind relay.Kind) []string {
	k := string(kind)
	switch {
	case strings.HasPrefix(k, "product_"):
		return []string{"/api/products", dashboardPrefix}
	case strings.HasPrefix(k, "order_"):
		return []string{"/api/orders", dashboardPrefix}
	case strings.HasPrefix(k, "seller_"):
		return []string{"/api/sellers", "/api/products", dashboardPrefix}
	case strings.HasPrefix(k, "stock_"):
		return []string{"/api/products", "/api/stock", dashboardPrefix}
	case kind == relay.KindSettingsUpdated:
		return []string{"/api/settings"}
	}
	return nil
}

// matchesEndpoint reports whether a cache key was built for a GET of prefix
// or one of its sub paths.
func matchesEndpoint(key, prefix string) bool {
	rest, ok := strings.CutPrefix(key, http.MethodGet+"_"+prefix)
	if !ok {
		return false
	}
	return rest == "" || rest[0] == '/' || rest[0] == '_'
}
