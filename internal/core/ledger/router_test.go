package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
	"github.com/dropzy/dropzy/internal/core/notify"
	"github.com/dropzy/dropzy/internal/core/relay"
	"github.com/dropzy/dropzy/internal/core/relay/relaytest"
)

func meta(k relay.Kind) relay.Meta { return relay.Meta{Type: k} }

func TestDraft(t *testing.T) {
	tests := []struct {
		name      string
		ev        relay.Event
		wantOK    bool
		wantType  notify.Type
		wantTitle string
		wantMsg   string
	}{
		{
			name:     "order created with count",
			ev:       &relay.OrderEvent{Meta: meta(relay.KindOrderCreated), OrderCount: 3},
			wantOK:   true,
			wantType: notify.TypeNewOrder,
			wantMsg:  "3 new orders",
		},
		{
			name:     "order processed with number",
			ev:       &relay.OrderEvent{Meta: meta(relay.KindOrderProcessed), OrderNumber: "1001"},
			wantOK:   true,
			wantType: notify.TypeOrderProcessed,
			wantMsg:  "#1001",
		},
		{
			name:   "order status change is not routed",
			ev:     &relay.OrderEvent{Meta: meta(relay.KindOrderStatusChanged)},
			wantOK: false,
		},
		{
			name:      "stock out",
			ev:        &relay.StockEvent{Meta: meta(relay.KindStockOut), ProductName: "Mug"},
			wantOK:    true,
			wantType:  notify.TypeStockAlert,
			wantTitle: "Out of stock!",
			wantMsg:   "Mug",
		},
		{
			name:      "stock low by id",
			ev:        &relay.StockEvent{Meta: meta(relay.KindStockLow), ProductID: 7},
			wantOK:    true,
			wantType:  notify.TypeStockAlert,
			wantTitle: "Stock updated",
			wantMsg:   "product #7",
		},
		{
			name:      "system notification",
			ev:        &relay.SystemEvent{Meta: meta(relay.KindSystemNotification), Title: "Maintenance", Message: "at noon"},
			wantOK:    true,
			wantType:  notify.TypeInfo,
			wantTitle: "Maintenance",
			wantMsg:   "at noon",
		},
		{
			name:     "success",
			ev:       &relay.SystemEvent{Meta: meta(relay.KindSuccess), Message: "synced"},
			wantOK:   true,
			wantType: notify.TypeSuccess,
			wantMsg:  "synced",
		},
		{
			name:     "server error",
			ev:       &relay.ErrorEvent{Meta: relay.Meta{Type: relay.KindError, Raw: json.RawMessage(`{}`)}, Message: "sync failed"},
			wantOK:   true,
			wantType: notify.TypeError,
			wantMsg:  "sync failed",
		},
		{
			name:   "local connection error",
			ev:     &relay.ErrorEvent{Meta: meta(relay.KindError), Message: "dial failed"},
			wantOK: false,
		},
		{
			name:     "max reconnect attempts",
			ev:       &relay.MaxReconnectEvent{Meta: meta(relay.KindMaxReconnectAttempts), Attempts: 5},
			wantOK:   true,
			wantType: notify.TypeError,
			wantMsg:  "live updates stopped after 5 reconnect attempts",
		},
		{
			name:   "connected",
			ev:     &relay.ConnectedEvent{Meta: meta(relay.KindConnected)},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Draft(tt.ev)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, d.Type)
			assert.Equal(t, tt.wantMsg, d.Message)
			if tt.wantTitle != "" {
				assert.Equal(t, tt.wantTitle, d.Title)
			}
		})
	}
}

func TestRouter_RecordsPushedEvents(t *testing.T) {
	srv := relaytest.NewServer(t)
	r := relay.New(relay.Options{})
	rec := relaytest.Record(r)

	l := New(kv.NewMemory(), Options{})
	subs := NewRouter(context.Background(), l).Register(r)
	assert.Len(t, subs, len(RoutedKinds))

	require.NoError(t, r.Connect(context.Background(), srv.URL))
	t.Cleanup(r.Disconnect)
	srv.Accept(t, 2*time.Second)
	require.True(t, rec.WaitFor(relay.KindConnected, 2*time.Second))

	srv.Push(t, map[string]any{"type": "order_created", "data": map[string]any{"message": "2 new orders"}})
	srv.Push(t, map[string]any{"type": "product_updated", "data": map[string]any{"product_id": 1}})
	srv.Push(t, map[string]any{"type": "stock_out", "data": map[string]any{"product_name": "Mug"}})
	require.True(t, rec.WaitFor(relay.KindStockOut, 2*time.Second))

	require.Eventually(t, func() bool { return l.UnreadCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	items := l.Notifications()
	assert.Equal(t, notify.TypeStockAlert, items[0].Type)
	assert.Equal(t, "2 new orders", items[1].Message)
}
