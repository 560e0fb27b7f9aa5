package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/core/notify"
	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

type NotificationsCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	limit int
}

func NewNotificationsCmd(flags *Flags, app *dropzy.App) *NotificationsCmd {
	return &NotificationsCmd{flags: flags, app: app}
}

func (cmd *NotificationsCmd) Register(app *cli.Command) *cli.Command {
	limitFlag := &cli.IntFlag{
		Name:        "limit",
		Aliases:     []string{"n"},
		Usage:       "show at most n notifications, 0 for all",
		Destination: &cmd.limit,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notif", "n"},
		Usage:   "Read and manage the local notification history",
		Description: `Notifications are recorded from live events while 'dropzy watch' runs.
The newest 100 are kept on this device.`,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List notifications, newest first",
				Flags:  []cli.Flag{limitFlag},
				Action: func(ctx context.Context, c *cli.Command) error { return cmd.list(c, false) },
			},
			{
				Name:   "unread",
				Usage:  "List unread notifications",
				Flags:  []cli.Flag{limitFlag},
				Action: func(ctx context.Context, c *cli.Command) error { return cmd.list(c, true) },
			},
			{
				Name:          "read",
				Usage:         "Mark notifications as read",
				UsageText:     "dropzy notifications read <id>...",
				ShellComplete: NotificationIDCompleter(cmd.app, true),
				Action:        cmd.runRead,
			},
			{
				Name:   "read-all",
				Usage:  "Mark every notification as read",
				Action: cmd.runReadAll,
			},
			{
				Name:          "delete",
				Usage:         "Delete notifications",
				UsageText:     "dropzy notifications delete <id>...",
				ShellComplete: NotificationIDCompleter(cmd.app, false),
				Action:        cmd.runDelete,
			},
			{
				Name:   "clear",
				Usage:  "Delete every notification",
				Action: cmd.runClear,
			},
		},
	})
	return app
}

func (cmd *NotificationsCmd) list(c *cli.Command, unreadOnly bool) error {
	snap := cmd.app.Ledger.Snapshot()

	items := snap.Notifications
	if unreadOnly {
		items = make([]notify.Notification, 0, snap.UnreadCount)
		for _, n := range snap.Notifications {
			if !n.Read {
				items = append(items, n)
			}
		}
	}
	if cmd.limit > 0 && len(items) > cmd.limit {
		items = items[:cmd.limit]
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, struct {
			Notifications []notify.Notification `json:"notifications"`
			UnreadCount   int                   `json:"unreadCount"`
		}{
			Notifications: items,
			UnreadCount:   snap.UnreadCount,
		})
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "No notifications")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, styles.TableHeaderStyle.Render("ID")+"\t"+
		styles.TableHeaderStyle.Render("WHEN")+"\t"+
		styles.TableHeaderStyle.Render("TITLE")+"\t"+
		styles.TableHeaderStyle.Render("MESSAGE"))

	now := time.Now()
	for _, n := range items {
		at, _ := n.Time()
		title := n.Title
		if !n.Read {
			title = styles.TextPrimaryBoldStyle.Render("● " + title)
		} else {
			title = "  " + title
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.TextMutedStyle.Render(shortID(n.ID)),
			ago(now, at),
			title,
			n.Message,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stderr, "%d unread\n", snap.UnreadCount)
	return nil
}

func (cmd *NotificationsCmd) runRead(ctx context.Context, c *cli.Command) error {
	ids, err := cmd.resolveIDs(c)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	for _, id := range ids {
		changed, err := cmd.app.Ledger.MarkAsRead(ctx, id)
		if err != nil {
			return err
		}
		if !changed {
			p.Infof("%s already read", shortID(id))
		}
	}
	p.Successf("%d unread", cmd.app.Ledger.UnreadCount())
	return nil
}

func (cmd *NotificationsCmd) runReadAll(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.Ledger.MarkAllAsRead(ctx); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("All notifications marked as read")
	return nil
}

func (cmd *NotificationsCmd) runDelete(ctx context.Context, c *cli.Command) error {
	ids, err := cmd.resolveIDs(c)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	deleted := 0
	for _, id := range ids {
		ok, err := cmd.app.Ledger.Delete(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			deleted++
		}
	}
	p.Successf("Deleted %d notification(s)", deleted)
	return nil
}

func (cmd *NotificationsCmd) runClear(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.Ledger.ClearAll(ctx); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Notifications cleared")
	return nil
}

// resolveIDs expands each argument to a full notification id. The short
// form printed by list is accepted.
func (cmd *NotificationsCmd) resolveIDs(c *cli.Command) ([]string, error) {
	if c.Args().Len() == 0 {
		return nil, errors.New("at least one notification id is required")
	}

	all := cmd.app.Ledger.Notifications()
	ids := make([]string, 0, c.Args().Len())
	for _, arg := range c.Args().Slice() {
		id, err := matchID(all, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

// matchID finds the notification whose id equals arg or ends with it, the
// form shortID prints.
func matchID(all []notify.Notification, arg string) (string, error) {
	var found string
	for _, n := range all {
		if n.ID == arg {
			return n.ID, nil
		}
		if len(arg) >= shortIDLen && len(n.ID) > len(arg) && n.ID[len(n.ID)-len(arg):] == arg {
			if found != "" {
				return "", fmt.Errorf("notification id %q is ambiguous", arg)
			}
			found = n.ID
		}
	}
	if found == "" {
		return "", fmt.Errorf("no notification with id %q", arg)
	}
	return found, nil
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
