package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/dropzy"
)

// NotificationIDCompleter returns a ShellCompleteFunc that suggests
// notification ids as positional completions, unread ones only when
// unreadOnly is set.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func NotificationIDCompleter(app *dropzy.App, unreadOnly bool) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if app.Ledger == nil {
			return
		}

		w := cmd.Root().Writer
		for _, n := range app.Ledger.Notifications() {
			if unreadOnly && n.Read {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s:%s\n", n.ID, n.Title)
		}
	}
}
