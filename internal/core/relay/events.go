package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies an event. The set of kinds is closed: frames with any
// other type are delivered as UnknownEvent.
type Kind string

// Server pushed kinds.
const (
	KindProductAdded        Kind = "product_added"
	KindProductUpdated      Kind = "product_updated"
	KindProductDeleted      Kind = "product_deleted"
	KindProductStockChanged Kind = "product_stock_changed"
	KindProductPriceChanged Kind = "product_price_changed"
	KindProductSynced       Kind = "product_synced"

	KindSellerAdded           Kind = "seller_added"
	KindSellerUpdated         Kind = "seller_updated"
	KindSellerDeleted         Kind = "seller_deleted"
	KindSellerProductsFetched Kind = "seller_products_fetched"

	KindOrderCreated       Kind = "order_created"
	KindOrderUpdated       Kind = "order_updated"
	KindOrderStatusChanged Kind = "order_status_changed"
	KindOrderProcessed     Kind = "order_processed"

	KindStockSyncStarted   Kind = "stock_sync_started"
	KindStockSyncCompleted Kind = "stock_sync_completed"
	KindStockLow           Kind = "stock_low"
	KindStockOut           Kind = "stock_out"

	KindSettingsUpdated Kind = "settings_updated"

	KindSystemNotification Kind = "system_notification"
	KindError              Kind = "error"
	KindSuccess            Kind = "success"
	KindPong               Kind = "pong"
)

// Kinds emitted by the relay itself. KindConnected is also sent by the
// server as a greeting.
const (
	KindConnected            Kind = "connected"
	KindDisconnected         Kind = "disconnected"
	KindMaxReconnectAttempts Kind = "max_reconnect_attempts"

	// KindPing is only ever sent.
	KindPing Kind = "ping"
)

// Kinds lists every known kind, sorted A-Z.
var Kinds = []Kind{
	KindConnected,
	KindDisconnected,
	KindError,
	KindMaxReconnectAttempts,
	KindOrderCreated,
	KindOrderProcessed,
	KindOrderStatusChanged,
	KindOrderUpdated,
	KindPong,
	KindProductAdded,
	KindProductDeleted,
	KindProductPriceChanged,
	KindProductStockChanged,
	KindProductSynced,
	KindProductUpdated,
	KindSellerAdded,
	KindSellerDeleted,
	KindSellerProductsFetched,
	KindSellerUpdated,
	KindSettingsUpdated,
	KindStockLow,
	KindStockOut,
	KindStockSyncCompleted,
	KindStockSyncStarted,
	KindSuccess,
	KindSystemNotification,
}

// Event is implemented only by the payload types in this package.
type Event interface {
	Kind() Kind
	EventMeta() Meta
	sealed()
}

// Meta is embedded in every event.
type Meta struct {
	Type Kind `json:"-"`
	// Timestamp is the frame timestamp as sent: an ISO string for server
	// events, unix milliseconds for pong.
	Timestamp string `json:"-"`
	// Raw is the original frame. Empty for locally emitted events.
	Raw json.RawMessage `json:"-"`
}

func (m Meta) Kind() Kind      { return m.Type }
func (m Meta) EventMeta() Meta { return m }
func (Meta) sealed()           {}

// ProductEvent covers the product_* kinds.
type ProductEvent struct {
	Meta
	ProductID        int64   `json:"product_id,omitempty"`
	ProductIDs       []int64 `json:"product_ids,omitempty"`
	ShopifyProductID string  `json:"shopify_product_id,omitempty"`
	Title            string  `json:"title,omitempty"`
	Price            float64 `json:"price,omitempty"`
	Stock            *int    `json:"stock,omitempty"`
	UpdatedCount     int     `json:"updated_count,omitempty"`
	SuccessCount     int     `json:"success_count,omitempty"`
	ErrorCount       int     `json:"error_count,omitempty"`
	DeletedCount     int     `json:"deleted_count,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// SellerEvent covers the seller_* kinds.
type SellerEvent struct {
	Meta
	SellerID         int64  `json:"seller_id,omitempty"`
	TrendyolSellerID int64  `json:"trendyol_seller_id,omitempty"`
	Name             string `json:"name,omitempty"`
	URL              string `json:"url,omitempty"`
	ProductCount     int    `json:"product_count,omitempty"`
	Message          string `json:"message,omitempty"`
}

// OrderEvent covers the order_* kinds.
type OrderEvent struct {
	Meta
	OrderID        int64  `json:"order_id,omitempty"`
	OrderNumber    string `json:"order_number,omitempty"`
	OrderCount     int    `json:"order_count,omitempty"`
	Status         string `json:"status,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Message        string `json:"message,omitempty"`
}

// StockEvent covers the stock_* kinds.
type StockEvent struct {
	Meta
	ProductID    int64  `json:"product_id,omitempty"`
	ProductName  string `json:"product_name,omitempty"`
	Stock        *int   `json:"stock,omitempty"`
	UpdatedCount int    `json:"updated_count,omitempty"`
	Message      string `json:"message,omitempty"`
}

// SettingsEvent is settings_updated. Keys lists the changed settings when
// the server sends them.
type SettingsEvent struct {
	Meta
	Keys    []string `json:"keys,omitempty"`
	Message string   `json:"message,omitempty"`
}

// SystemEvent covers system_notification and success.
type SystemEvent struct {
	Meta
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorEvent is a server error frame or a local connection failure.
type ErrorEvent struct {
	Meta
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// ConnectedEvent is emitted when the socket opens, and is also the server's
// greeting frame.
type ConnectedEvent struct {
	Meta
	URL         string `json:"url,omitempty"`
	Message     string `json:"message,omitempty"`
	Connections int    `json:"connections,omitempty"`
}

// DisconnectedEvent is emitted when the socket closes or a dial fails.
type DisconnectedEvent struct {
	Meta
	Reason string `json:"reason,omitempty"`
}

// PongEvent answers a ping. SentAt echoes the ping timestamp.
type PongEvent struct {
	Meta
	SentAt int64 `json:"-"`
}

// MaxReconnectEvent is emitted once reconnecting has given up.
type MaxReconnectEvent struct {
	Meta
	Attempts int `json:"attempts"`
}

// UnknownEvent carries a frame whose type is not a known Kind.
type UnknownEvent struct {
	Meta
}

var constructors = map[Kind]func() Event{
	KindProductAdded:          func() Event { return &ProductEvent{} },
	KindProductUpdated:        func() Event { return &ProductEvent{} },
	KindProductDeleted:        func() Event { return &ProductEvent{} },
	KindProductStockChanged:   func() Event { return &ProductEvent{} },
	KindProductPriceChanged:   func() Event { return &ProductEvent{} },
	KindProductSynced:         func() Event { return &ProductEvent{} },
	KindSellerAdded:           func() Event { return &SellerEvent{} },
	KindSellerUpdated:         func() Event { return &SellerEvent{} },
	KindSellerDeleted:         func() Event { return &SellerEvent{} },
	KindSellerProductsFetched: func() Event { return &SellerEvent{} },
	KindOrderCreated:          func() Event { return &OrderEvent{} },
	KindOrderUpdated:          func() Event { return &OrderEvent{} },
	KindOrderStatusChanged:    func() Event { return &OrderEvent{} },
	KindOrderProcessed:        func() Event { return &OrderEvent{} },
	KindStockSyncStarted:      func() Event { return &StockEvent{} },
	KindStockSyncCompleted:    func() Event { return &StockEvent{} },
	KindStockLow:              func() Event { return &StockEvent{} },
	KindStockOut:              func() Event { return &StockEvent{} },
	KindSettingsUpdated:       func() Event { return &SettingsEvent{} },
	KindSystemNotification:    func() Event { return &SystemEvent{} },
	KindSuccess:               func() Event { return &SystemEvent{} },
	KindError:                 func() Event { return &ErrorEvent{} },
	KindConnected:             func() Event { return &ConnectedEvent{} },
	KindDisconnected:          func() Event { return &DisconnectedEvent{} },
	KindPong:                  func() Event { return &PongEvent{} },
	KindMaxReconnectAttempts:  func() Event { return &MaxReconnectEvent{} },
}

var errNoType = errors.New("frame has no type")

// ErrPayload marks a frame whose payload fields did not match the types of
// its kind. Decode still returns the event, carrying only its Meta.
var ErrPayload = errors.New("payload does not match kind")

// Decode parses a wire frame {type, data:{...}, timestamp}. Payload fields
// are read from the top level first and then from data, so both layouts
// are accepted. Returned events are pointers to the payload types.
//
// When the payload cannot be read into the kind's type the error wraps
// ErrPayload and the returned event is an empty payload of that kind with
// Type, Timestamp and Raw set.
func Decode(frame []byte) (Event, error) {
	var head struct {
		Type      Kind            `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if head.Type == "" {
		return nil, errNoType
	}

	ctor, ok := constructors[head.Type]
	if !ok {
		ctor = func() Event { return &UnknownEvent{} }
	}
	meta := Meta{
		Type:      head.Type,
		Timestamp: timestampString(head.Timestamp),
		Raw:       append(json.RawMessage(nil), frame...),
	}

	ev := ctor()
	if err := decodePayload(ev, frame, head.Data); err != nil {
		bare := ctor()
		setMeta(bare, meta)
		return bare, fmt.Errorf("decode %s: %w: %w", head.Type, ErrPayload, err)
	}
	setMeta(ev, meta)

	if pong, ok := ev.(*PongEvent); ok {
		_ = json.Unmarshal(head.Timestamp, &pong.SentAt)
	}
	return ev, nil
}

func decodePayload(ev Event, frame, data json.RawMessage) error {
	if err := json.Unmarshal(frame, ev); err != nil {
		return err
	}
	if data = bytes.TrimSpace(data); len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, ev); err != nil {
			return fmt.Errorf("data: %w", err)
		}
	}
	return nil
}

func timestampString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func setMeta(ev Event, m Meta) {
	switch e := ev.(type) {
	case *ProductEvent:
		e.Meta = m
	case *SellerEvent:
		e.Meta = m
	case *OrderEvent:
		e.Meta = m
	case *StockEvent:
		e.Meta = m
	case *SettingsEvent:
		e.Meta = m
	case *SystemEvent:
		e.Meta = m
	case *ErrorEvent:
		e.Meta = m
	case *ConnectedEvent:
		e.Meta = m
	case *DisconnectedEvent:
		e.Meta = m
	case *PongEvent:
		e.Meta = m
	case *MaxReconnectEvent:
		e.Meta = m
	case *UnknownEvent:
		e.Meta = m
	}
}

// local builds a relay-originated event.
func local[T Event](kind Kind, ev T) T {
	setMeta(ev, Meta{Type: kind})
	return ev
}
