package commands

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/pkg/iojson"
)

// ReportsCmd groups the dashboard, report, store and settings commands.
type ReportsCmd struct {
	flags *Flags
	app   *dropzy.App

	settingsBody iojson.FileReader[map[string]any]
}

func NewReportsCmd(flags *Flags, app *dropzy.App) *ReportsCmd {
	return &ReportsCmd{flags: flags, app: app}
}

func (cmd *ReportsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:  "dashboard",
			Usage: "Show the dashboard summary",
			Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
				return cmd.app.API.Dashboard(ctx)
			}),
		},
		cmd.reports(),
		cmd.stores(),
		cmd.settings(),
	)
	return app
}

func (cmd *ReportsCmd) action(call func(ctx context.Context, c *cli.Command) (json.RawMessage, error)) cli.ActionFunc {
	return apiAction(cmd.flags, cmd.app, call)
}

func (cmd *ReportsCmd) reports() *cli.Command {
	return &cli.Command{
		Name:    "reports",
		Aliases: []string{"report"},
		Usage:   "Sales and profit reports",
		Commands: []*cli.Command{
			{
				Name:  "dashboard",
				Usage: "Dashboard statistics",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.DashboardStats(ctx)
				}),
			},
			{
				Name:  "sales",
				Usage: "Sales over a period",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "period", Value: "week", Usage: "day, week, month or year"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.SalesReport(ctx, c.String("period"))
				}),
			},
			{
				Name:  "top-products",
				Usage: "Best selling products",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "number of products"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.TopProducts(ctx, c.Int("limit"))
				}),
			},
			{
				Name:  "profit",
				Usage: "Profit analysis",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.ProfitAnalysis(ctx)
				}),
			},
			{
				Name:  "activity",
				Usage: "Recent activity log",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "number of entries"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.ActivityLog(ctx, c.Int("limit"))
				}),
			},
		},
	}
}

func (cmd *ReportsCmd) stores() *cli.Command {
	withID := func(call func(ctx context.Context, id int64) (json.RawMessage, error)) cli.ActionFunc {
		return cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
			id, err := argID(c, 0, "store id")
			if err != nil {
				return nil, err
			}
			return call(ctx, id)
		})
	}

	return &cli.Command{
		Name:    "stores",
		Aliases: []string{"store"},
		Usage:   "Manage connected Shopify stores",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stores",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.Stores(ctx)
				}),
			},
			{
				Name:      "get",
				Usage:     "Show one store",
				UsageText: "dropzy stores get <id>",
				Action:    withID(func(ctx context.Context, id int64) (json.RawMessage, error) { return cmd.app.API.Store(ctx, id) }),
			},
			{
				Name:      "add",
				Usage:     "Connect a store",
				UsageText: "dropzy stores add <shop-name> --token TOKEN [--name NAME] [--default]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Usage: "Admin API access token", Sources: cli.EnvVars("DROPZY_SHOPIFY_TOKEN"), Required: true},
					&cli.StringFlag{Name: "name", Usage: "display name"},
					&cli.BoolFlag{Name: "default", Usage: "make this the default store"},
				},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					shop := c.Args().First()
					if shop == "" {
						return nil, errors.New("shop name is required")
					}
					return cmd.app.API.AddStore(ctx, api.StoreInput{
						ShopName:    shop,
						AccessToken: c.String("token"),
						StoreName:   c.String("name"),
						IsDefault:   c.Bool("default"),
					})
				}),
			},
			{
				Name:      "set-default",
				Usage:     "Make a store the default",
				UsageText: "dropzy stores set-default <id>",
				Action:    withID(func(ctx context.Context, id int64) (json.RawMessage, error) { return cmd.app.API.SetDefaultStore(ctx, id) }),
			},
			{
				Name:      "test",
				Usage:     "Test a store's credentials",
				UsageText: "dropzy stores test <id>",
				Action:    withID(func(ctx context.Context, id int64) (json.RawMessage, error) { return cmd.app.API.TestStore(ctx, id) }),
			},
			{
				Name:      "delete",
				Usage:     "Disconnect a store",
				UsageText: "dropzy stores delete <id>",
				Action:    withID(func(ctx context.Context, id int64) (json.RawMessage, error) { return cmd.app.API.DeleteStore(ctx, id) }),
			},
		},
	}
}

func (cmd *ReportsCmd) settings() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Account settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show settings",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.Settings(ctx)
				}),
			},
			{
				Name:      "update",
				Usage:     "Update settings from a JSON object",
				UsageText: "dropzy settings update -f settings.json",
				Flags:     []cli.Flag{cmd.settingsBody.Flag()},
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					settings, err := cmd.settingsBody.Read()
					if err != nil {
						return nil, err
					}
					return cmd.app.API.UpdateSettings(ctx, settings)
				}),
			},
			{
				Name:  "test-shopify",
				Usage: "Test the Shopify connection",
				Action: cmd.action(func(ctx context.Context, c *cli.Command) (json.RawMessage, error) {
					return cmd.app.API.TestShopifyConnection(ctx)
				}),
			},
		},
	}
}
