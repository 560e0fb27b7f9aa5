package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/notify"
	"github.com/dropzy/dropzy/internal/core/relay"
)

// RoutedKinds are the relay events that become notifications.
var RoutedKinds = []relay.Kind{
	relay.KindOrderCreated,
	relay.KindOrderProcessed,
	relay.KindStockOut,
	relay.KindStockLow,
	relay.KindSystemNotification,
	relay.KindError,
	relay.KindSuccess,
	relay.KindMaxReconnectAttempts,
}

// Router maps relay events to ledger entries.
type Router struct {
	ctx    context.Context
	ledger *Ledger
	logger zerolog.Logger
}

// NewRouter creates a router writing to l. ctx bounds the storage writes
// made from relay callbacks.
func NewRouter(ctx context.Context, l *Ledger) *Router {
	return &Router{ctx: ctx, ledger: l, logger: logging.Component("ledger.router")}
}

// Register subscribes the router to every routed kind on r.
func (rt *Router) Register(r *relay.Relay) []relay.Subscription {
	subs := make([]relay.Subscription, 0, len(RoutedKinds))
	for _, k := range RoutedKinds {
		subs = append(subs, r.On(k, rt.Handle))
	}
	return subs
}

// Handle records ev when it maps to a notification.
func (rt *Router) Handle(ev relay.Event) {
	d, ok := Draft(ev)
	if !ok {
		return
	}
	if _, err := rt.ledger.Add(rt.ctx, d); err != nil {
		rt.logger.Warn().Err(err).Str("event", string(ev.Kind())).Msg("record notification failed")
	}
}

// Draft converts a relay event into a notification draft. Local connection
// errors are not recorded; each reconnect attempt emits one.
func Draft(ev relay.Event) (notify.Draft, bool) {
	switch e := ev.(type) {
	case *relay.OrderEvent:
		switch e.Kind() {
		case relay.KindOrderCreated:
			return newOrderDraft(orderMessage(e, "new order received")), true
		case relay.KindOrderProcessed:
			return orderProcessedDraft(orderMessage(e, "order processed")), true
		}
	case *relay.StockEvent:
		name := e.ProductName
		if name == "" && e.ProductID != 0 {
			name = fmt.Sprintf("product #%d", e.ProductID)
		}
		if name == "" {
			name = e.Message
		}
		switch e.Kind() {
		case relay.KindStockOut:
			return stockDraft(name, StockStatusOut), true
		case relay.KindStockLow:
			return stockDraft(name, "low"), true
		}
	case *relay.SystemEvent:
		switch e.Kind() {
		case relay.KindSystemNotification:
			title := e.Title
			if title == "" {
				title = "Notice"
			}
			return notify.Draft{Type: notify.TypeInfo, Title: title, Message: e.Message}, true
		case relay.KindSuccess:
			return successDraft(e.Message), true
		}
	case *relay.ErrorEvent:
		if len(e.Raw) == 0 {
			return notify.Draft{}, false
		}
		return errorDraft(e.Message), true
	case *relay.MaxReconnectEvent:
		return errorDraft(fmt.Sprintf("live updates stopped after %d reconnect attempts", e.Attempts)), true
	}
	return notify.Draft{}, false
}

func orderMessage(e *relay.OrderEvent, fallback string) string {
	switch {
	case e.Message != "":
		return e.Message
	case e.OrderNumber != "":
		return "#" + e.OrderNumber
	case e.OrderCount > 0:
		return fmt.Sprintf("%d new orders", e.OrderCount)
	}
	return fallback
}
