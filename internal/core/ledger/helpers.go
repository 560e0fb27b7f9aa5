package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dropzy/dropzy/internal/core/notify"
)

// StockStatusOut marks a product that ran out of stock.
const StockStatusOut = "out_of_stock"

func newOrderDraft(message string) notify.Draft {
	return notify.Draft{Type: notify.TypeNewOrder, Title: "New order!", Message: message, Icon: "cart", Color: "#10b981"}
}

func orderProcessedDraft(message string) notify.Draft {
	return notify.Draft{Type: notify.TypeOrderProcessed, Title: "Order processed", Message: message, Icon: "checkmark-circle", Color: "#3b82f6"}
}

func stockDraft(productName, status string) notify.Draft {
	if status == StockStatusOut {
		return notify.Draft{Type: notify.TypeStockAlert, Title: "Out of stock!", Message: productName, Icon: "warning", Color: "#ef4444"}
	}
	return notify.Draft{Type: notify.TypeStockAlert, Title: "Stock updated", Message: productName, Icon: "cube", Color: "#f59e0b"}
}

func errorDraft(message string) notify.Draft {
	return notify.Draft{Type: notify.TypeError, Title: "Error", Message: message, Icon: "alert-circle", Color: "#ef4444"}
}

func successDraft(message string) notify.Draft {
	return notify.Draft{Type: notify.TypeSuccess, Title: "Success", Message: message, Icon: "checkmark-circle", Color: "#10b981"}
}

func (l *Ledger) NotifyNewOrder(ctx context.Context, orderNumber, customer string, total float64) (notify.Notification, error) {
	msg := fmt.Sprintf("#%s - %s - $%s", orderNumber, customer, strconv.FormatFloat(total, 'f', 2, 64))
	return l.Add(ctx, newOrderDraft(msg))
}

func (l *Ledger) NotifyOrderProcessed(ctx context.Context, orderNumber string) (notify.Notification, error) {
	return l.Add(ctx, orderProcessedDraft(fmt.Sprintf("#%s is ready at the supplier", orderNumber)))
}

func (l *Ledger) NotifyPaymentPending(ctx context.Context, orderNumber string) (notify.Notification, error) {
	return l.Add(ctx, notify.Draft{
		Type:    notify.TypePaymentPending,
		Title:   "Payment pending",
		Message: fmt.Sprintf("complete the supplier payment for #%s", orderNumber),
		Icon:    "card",
		Color:   "#8b5cf6",
	})
}

// NotifyStockAlert records a stock change. status StockStatusOut renders as
// an out of stock warning, anything else as a stock update.
func (l *Ledger) NotifyStockAlert(ctx context.Context, productName, status string) (notify.Notification, error) {
	return l.Add(ctx, stockDraft(productName, status))
}

func (l *Ledger) NotifyError(ctx context.Context, message string) (notify.Notification, error) {
	return l.Add(ctx, errorDraft(message))
}

func (l *Ledger) NotifySuccess(ctx context.Context, message string) (notify.Notification, error) {
	return l.Add(ctx, successDraft(message))
}
