package commands

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/dropzy"
)

// CatalogCmd groups the product, seller and stock commands.
type CatalogCmd struct {
	flags *Flags
	app   *dropzy.App
}

func NewCatalogCmd(flags *Flags, app *dropzy.App) *CatalogCmd {
	return &CatalogCmd{flags: flags, app: app}
}

func (cmd *CatalogCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, cmd.products(), cmd.sellers(), cmd.stock())
	return app
}

func (cmd *CatalogCmd) action(call func(ctx context.Context, c *cli.Command) (json.RawMessage, error)) cli.ActionFunc {
	return apiAction(cmd.flags, cmd.app, call)
}

func (cmd *CatalogCmd) products() *cli.Command {
	svc := func() *api.Service { return cmd.app.API }

	return &cli.Command{
		Name:    "products",
		Aliases: []string{"product"},
		Usage:   "Browse and manage imported products",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List products",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
					&cli.IntFlag{Name: "per-page", Value: 20, Usage: "page size"},
					&cli.Int64Flag{Name: "seller", Usage: "only products of this seller id"},
					&cli.BoolFlag{Name: "synced", Usage: "only products synced to Shopify"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return svc().Products(ctx, api.ProductQuery{
						Page:       c.Int("page"),
						PerPage:    c.Int("per-page"),
						SellerID:   c.Int64("seller"),
						SyncedOnly: c.Bool("synced"),
					})
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one product",
				UsageText: "dropzy products get <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "product id")
					if err != nil {
						return nil, err
					}
					return svc().Product(ctx, id)
				}),
			},
			{
				Name:      "check-stock",
				Usage:     "Check supplier stock for a product",
				UsageText: "dropzy products check-stock <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "product id")
					if err != nil {
						return nil, err
					}
					return svc().CheckProductStock(ctx, id)
				}),
			},
			{
				Name:      "sync",
				Usage:     "Push products to Shopify",
				UsageText: "dropzy products sync <id>... [--margin 30]",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "margin", Usage: "profit margin percentage", Value: 30},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					ids, err := argIDs(c, "product id")
					if err != nil {
						return nil, err
					}
					return svc().SyncProductsToShopify(ctx, ids, c.Float("margin"))
				}),
			},
			{
				Name:      "price",
				Usage:     "Update prices of several products",
				UsageText: "dropzy products price <id>... (--margin N | --increase N | --fixed N)",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "margin", Usage: "set margin percentage"},
					&cli.FloatFlag{Name: "increase", Usage: "add a fixed amount"},
					&cli.FloatFlag{Name: "fixed", Usage: "set a fixed price"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					ids, err := argIDs(c, "product id")
					if err != nil {
						return nil, err
					}
					u, err := priceUpdate(c)
					if err != nil {
						return nil, err
					}
					return svc().BulkUpdatePrice(ctx, ids, u)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete products",
				UsageText: "dropzy products delete <id>...",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					ids, err := argIDs(c, "product id")
					if err != nil {
						return nil, err
					}
					return svc().BulkDeleteProducts(ctx, ids)
				}),
			},
		},
	}
}

func priceUpdate(c *cli.Command) (api.PriceUpdate, error) {
	var u api.PriceUpdate
	set := 0
	if c.IsSet("margin") {
		v := c.Float("margin")
		u.MarginPercentage = &v
		set++
	}
	if c.IsSet("increase") {
		v := c.Float("increase")
		u.FixedIncrease = &v
		set++
	}
	if c.IsSet("fixed") {
		v := c.Float("fixed")
		u.FixedPrice = &v
		set++
	}
	if set != 1 {
		return u, errors.New("set exactly one of --margin, --increase or --fixed")
	}
	return u, nil
}

func (cmd *CatalogCmd) sellers() *cli.Command {
	return &cli.Command{
		Name:    "sellers",
		Aliases: []string{"seller"},
		Usage:   "Manage the Trendyol sellers products are imported from",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sellers",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.Sellers(ctx)
				}),
			},
			{
				Name:      "add",
				Usage:     "Add a seller by store URL",
				UsageText: "dropzy sellers add <store-url> --name NAME [--note NOTE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "seller name", Required: true},
					&cli.StringFlag{Name: "note", Usage: "free text note"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					url := c.Args().First()
					if url == "" {
						return nil, errors.New("store url is required")
					}
					return cmd.app.API.AddSeller(ctx, api.SellerInput{
						Name: c.String("name"),
						URL:  url,
						Note: c.String("note"),
					})
				}),
			},
			{
				Name:      "delete",
				Usage:     "Remove a seller",
				UsageText: "dropzy sellers delete <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "seller id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.DeleteSeller(ctx, id)
				}),
			},
			{
				Name:      "sync",
				Usage:     "Import the seller's products",
				UsageText: "dropzy sellers sync <id>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					id, err := argID(c, 0, "seller id")
					if err != nil {
						return nil, err
					}
					return cmd.app.API.SyncSellerProducts(ctx, id)
				}),
			},
		},
	}
}

func (cmd *CatalogCmd) stock() *cli.Command {
	return &cli.Command{
		Name:  "stock",
		Usage: "Supplier stock synchronization",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Run a stock sync now",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.SyncStock(ctx)
				}),
			},
			{
				Name:  "status",
				Usage: "Show the automatic stock sync status",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.StockSyncStatus(ctx)
				}),
			},
			{
				Name:      "auto",
				Usage:     "Start or stop automatic stock sync",
				UsageText: "dropzy stock auto <start|stop>",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					switch c.Args().First() {
					case "start":
						return cmd.app.API.StartAutoSync(ctx)
					case "stop":
						return cmd.app.API.StopAutoSync(ctx)
					default:
						return nil, errors.New("expected start or stop")
					}
				}),
			},
			{
				Name:  "update-all",
				Usage: "Refresh stock for every product",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.BulkStockUpdate(ctx)
				}),
			},
		},
	}
}
