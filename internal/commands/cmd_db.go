package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

var errNoDatabase = errors.New("no on-device database in this mode")

type DBCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	steps int
	yes   bool
}

func NewDBCmd(flags *Flags, app *dropzy.App) *DBCmd {
	return &DBCmd{flags: flags, app: app}
}

func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Inspect the on-device database schema",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show applied and pending schema migrations",
				Action: cmd.runStatus,
			},
			{
				Name:        "rollback",
				Usage:       "Revert schema migrations before installing an older dropzy",
				UsageText:   "dropzy db rollback [--steps N] --yes",
				Description: "Reverts the newest migrations. Data stored by the reverted versions may be lost.",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Value:       1,
						Usage:       "number of migrations to revert",
						Destination: &cmd.steps,
					},
					&cli.BoolFlag{
						Name:        "yes",
						Usage:       "confirm the rollback",
						Destination: &cmd.yes,
					},
				},
				Action: cmd.runRollback,
			},
		},
	})
	return app
}

func (cmd *DBCmd) runStatus(ctx context.Context, c *cli.Command) error {
	if cmd.app.DB == nil {
		return errNoDatabase
	}
	st, err := cmd.app.DB.Schema(ctx)
	if err != nil {
		return err
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, st)
	}

	state := styles.TextSuccessStyle.Render("up to date")
	if !st.UpToDate() {
		state = styles.TextWarningStyle.Render(fmt.Sprintf("%d pending", len(st.Pending)))
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Version\t%d of %d\n", st.Current, st.Latest)
	_, _ = fmt.Fprintf(w, "State\t%s\n", state)
	if len(st.Pending) > 0 {
		_, _ = fmt.Fprintf(w, "Pending\t%s\n", strings.Join(st.Pending, ", "))
	}
	return w.Flush()
}

func (cmd *DBCmd) runRollback(ctx context.Context, c *cli.Command) error {
	if cmd.app.DB == nil {
		return errNoDatabase
	}
	if !cmd.yes {
		return fmt.Errorf("rollback can discard stored data, pass --yes to confirm")
	}
	if err := cmd.app.DB.Rollback(ctx, cmd.steps); err != nil {
		return err
	}

	st, err := cmd.app.DB.Schema(ctx)
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Reverted %d migration%s, schema now at version %d", cmd.steps, plural(cmd.steps, "", "s"), st.Current)
	return nil
}
