package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	probe bool
}

func NewStatusCmd(flags *Flags, app *dropzy.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show connectivity, session, cache and notification state",
		UsageText: "dropzy status [--probe]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "probe",
				Usage:       "check connectivity now instead of using the last result",
				Destination: &cmd.probe,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	if err := connect(ctx, cmd.app); err != nil {
		return err
	}
	s := cmd.app.Status(ctx, cmd.probe)

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, s)
	}

	online := styles.TextSuccessStyle.Render("online")
	if !s.Online {
		online = styles.TextErrorStyle.Render("offline")
	}
	user := styles.TextMutedStyle.Render("signed out")
	if s.Authenticated {
		user = s.User
	}
	cacheState := "disabled"
	if s.CacheEnabled {
		cacheState = fmt.Sprintf("%d entries, %s", s.CacheEntries, humanBytes(s.CacheBytes))
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Server\t%s %s\n", s.BaseURL, online)
	_, _ = fmt.Fprintf(w, "User\t%s\n", user)
	_, _ = fmt.Fprintf(w, "Cache\t%s\n", cacheState)
	_, _ = fmt.Fprintf(w, "Notifications\t%d (%d unread)\n", s.Notifications, s.Unread)
	_, _ = fmt.Fprintf(w, "Relay\t%s\n", styles.StatusStyle(s.Relay.State).Render(s.Relay.State))
	for k, v := range s.Errors {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", k, styles.TextErrorStyle.Render(fmt.Sprint(v)))
	}
	return w.Flush()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
