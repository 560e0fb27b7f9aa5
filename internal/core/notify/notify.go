// Package notify defines the in-app notification model shared by the ledger,
// the sync workers and the CLI.
package notify

import (
	"context"
	"time"
)

// Type classifies a notification.
type Type string

const (
	TypeInfo           Type = "info"
	TypeNewOrder       Type = "new_order"
	TypeOrderProcessed Type = "order_processed"
	TypePaymentPending Type = "payment_pending"
	TypeStockAlert     Type = "stock_alert"
	TypeError          Type = "error"
	TypeSuccess        Type = "success"
)

// Defaults applied to drafts that leave presentation fields empty.
const (
	DefaultIcon  = "notifications"
	DefaultColor = "#3b82f6"
)

// Notification is one ledger entry. Timestamp is RFC 3339 so persisted lists
// stay readable by other clients sharing the same storage.
type Notification struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
	Type      Type   `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
}

// Time parses Timestamp. Entries written by older clients may carry a
// timestamp without a zone, which is read as UTC.
func (n Notification) Time() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, n.Timestamp); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", n.Timestamp)
}

// Draft is the caller supplied part of a notification. The ledger assigns
// the id, timestamp and read flag.
type Draft struct {
	Type    Type
	Title   string
	Message string
	Icon    string
	Color   string
}

// Build turns the draft into an unread notification.
func (d Draft) Build(id string, at time.Time) Notification {
	n := Notification{
		ID:        id,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Icon:      d.Icon,
		Color:     d.Color,
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.Icon == "" {
		n.Icon = DefaultIcon
	}
	if n.Color == "" {
		n.Color = DefaultColor
	}
	return n
}

// Pusher delivers notifications outside the ledger, for example to the
// terminal or a desktop notifier. Failures never block a ledger mutation.
type Pusher interface {
	Push(ctx context.Context, n Notification) error
	SetBadge(ctx context.Context, count int) error
}

// NopPusher discards everything.
type NopPusher struct{}

func (NopPusher) Push(context.Context, Notification) error { return nil }
func (NopPusher) SetBadge(context.Context, int) error      { return nil }
