package commands

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/dropzy"
)

// OrdersCmd groups the order and shipment commands.
type OrdersCmd struct {
	flags *Flags
	app   *dropzy.App
}

func NewOrdersCmd(flags *Flags, app *dropzy.App) *OrdersCmd {
	return &OrdersCmd{flags: flags, app: app}
}

func (cmd *OrdersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, cmd.orders(), cmd.shipments())
	return app
}

func (cmd *OrdersCmd) action(call func(ctx context.Context, c *cli.Command) (json.RawMessage, error)) cli.ActionFunc {
	return apiAction(cmd.flags, cmd.app, call)
}

func (cmd *OrdersCmd) orders() *cli.Command {
	return &cli.Command{
		Name:    "orders",
		Aliases: []string{"order"},
		Usage:   "Browse and fulfil Shopify orders",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List orders",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "only orders with this status"},
					&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
					&cli.IntFlag{Name: "per-page", Value: 20, Usage: "page size"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.Orders(ctx, api.OrderQuery{
						Status:  c.String("status"),
						Page:    c.Int("page"),
						PerPage: c.Int("per-page"),
					})
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one order",
				UsageText: "dropzy orders get <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "order id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.Order(ctx, id)
				}),
			},
			{
				Name:      "set-status",
				Usage:     "Change an order's status",
				UsageText: "dropzy orders set-status <id> <status> [--notes TEXT]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "notes", Usage: "note stored with the change"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "order id")
					if err != nil {
						return nil, err
					}
					status := c.Args().Get(1)
					if status == "" {
						return nil, errors.New("status is required")
					}
					return cmd.app.API.UpdateOrderStatus(ctx, id, status, c.String("notes"))
				}),
			},
			{
				Name:      "process",
				Usage:     "Place the order with the supplier",
				UsageText: "dropzy orders process <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "order id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.ProcessOrder(ctx, id)
				}),
			},
			{
				Name:      "shipment",
				Usage:     "Show the shipment of an order",
				UsageText: "dropzy orders shipment <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "order id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.OrderShipment(ctx, id)
				}),
			},
			{
				Name:  "fetch",
				Usage: "Pull new orders from Shopify",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.FetchOrdersFromShopify(ctx)
				}),
			},
			{
				Name:      "automation",
				Usage:     "Show, start or stop order automation",
				UsageText: "dropzy orders automation [start|stop]",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					switch c.Args().First() {
					case "":
						return cmd.app.API.OrderAutomationStatus(ctx)
					case "start":
						return cmd.app.API.StartOrderAutomation(ctx)
					case "stop":
						return cmd.app.API.StopOrderAutomation(ctx)
					default:
						return nil, errors.New("expected start or stop")
					}
				}),
			},
		},
	}
}

func (cmd *OrdersCmd) shipments() *cli.Command {
	return &cli.Command{
		Name:    "shipments",
		Aliases: []string{"shipment"},
		Usage:   "Track shipments",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List shipments",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.Shipments(ctx)
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one shipment",
				UsageText: "dropzy shipments get <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "shipment id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.Shipment(ctx, id)
				}),
			},
			{
				Name:      "create",
				Usage:     "Register a tracking number",
				UsageText: "dropzy shipments create <tracking-number> --carrier CODE [--order ID]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "carrier", Usage: "carrier code, see 'dropzy shipments carriers'", Required: true},
					&cli.StringFlag{Name: "carrier-name", Usage: "display name for a custom carrier"},
					&cli.Int64Flag{Name: "order", Usage: "order id the shipment belongs to"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					tracking := c.Args().First()
					if tracking == "" {
						return nil, errors.New("tracking number is required")
					}
					return cmd.app.API.CreateShipment(ctx, api.ShipmentInput{
						TrackingNumber: tracking,
						Carrier:        c.String("carrier"),
						CarrierName:    c.String("carrier-name"),
						OrderID:        c.Int64("order"),
					})
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a shipment",
				UsageText: "dropzy shipments delete <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "shipment id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.DeleteShipment(ctx, id)
				}),
			},
			{
				Name:  "carriers",
				Usage: "List supported carriers",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.Carriers(ctx)
				}),
			},
		},
	}
}
