package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/core/ledger"
	"github.com/dropzy/dropzy/internal/core/relay"
	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/metrics"
	"github.com/dropzy/dropzy/internal/profiler"
	"github.com/dropzy/dropzy/pkg/iojson"
)

// ErrGaveUp is returned by watch when the relay stops reconnecting.
var ErrGaveUp = errors.New("live updates stopped")

type WatchCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	types     []string
	noPoll    bool
	noRecord  bool
	debugAddr string
}

func NewWatchCmd(flags *Flags, app *dropzy.App) *WatchCmd {
	return &WatchCmd{flags: flags, app: app}
}

func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Stream live events and record notifications",
		UsageText: "dropzy watch [--type GLOB]... [--no-poll] [--no-record]",
		Description: `Connects to the realtime relay and prints every event until interrupted.
Order, stock and system events are recorded in the local notification
history, and new-order notifications are polled as a fallback.

Filter with --type, a glob over event types:
  dropzy watch --type 'order_*' --type stock_out

Pong frames are hidden unless a --type pattern matches them.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "only print event types matching this glob, repeatable",
				Destination: &cmd.types,
				Validator: func(patterns []string) error {
					for _, p := range patterns {
						if !doublestar.ValidatePattern(p) {
							return fmt.Errorf("invalid glob %q", p)
						}
					}
					return nil
				},
			},
			&cli.BoolFlag{
				Name:        "no-poll",
				Usage:       "do not poll for new-order notifications",
				Destination: &cmd.noPoll,
			},
			&cli.BoolFlag{
				Name:        "no-record",
				Usage:       "do not add events to the notification history",
				Destination: &cmd.noRecord,
			},
			&cli.StringFlag{
				Name:        "debug-addr",
				Usage:       "serve pprof, metrics and status on this address (overrides debug.addr)",
				Sources:     cli.EnvVars("DROPZY_DEBUG_ADDR"),
				Destination: &cmd.debugAddr,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	if !cmd.app.Session.IsAuthenticated() {
		return cli.Exit("not signed in, run 'dropzy login'", 1)
	}
	if err := connect(ctx, cmd.app); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopDebug, err := cmd.startDebugServer(ctx)
	if err != nil {
		return err
	}
	defer stopDebug()

	events := newEventPrinter(c.Root().Writer, cmd.types, cmd.flags.JSON)
	printSub := cmd.app.Relay.OnAny(events.Print)
	defer printSub.Unsubscribe()

	live, err := cmd.app.StartLive(ctx, dropzy.LiveOptions{
		Relay:  true,
		Poll:   !cmd.noPoll,
		Sweep:  true,
		Router: !cmd.noRecord,
	})
	if err != nil {
		return err
	}
	defer live.Stop()

	// Registered after the router so the terminal event is recorded first.
	gaveUp := make(chan int, 1)
	sub := cmd.app.Relay.On(relay.KindMaxReconnectAttempts, func(ev relay.Event) {
		attempts := 0
		if m, ok := ev.(*relay.MaxReconnectEvent); ok {
			attempts = m.Attempts
		}
		select {
		case gaveUp <- attempts:
		default:
		}
	})
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		return nil
	case n := <-gaveUp:
		return fmt.Errorf("%w after %d reconnect attempts", ErrGaveUp, n)
	}
}

func (cmd *WatchCmd) startDebugServer(ctx context.Context) (func(), error) {
	addr := cmd.debugAddr
	if addr == "" {
		addr = cmd.flags.Config.Debug.Addr
	}
	if addr == "" {
		return func() {}, nil
	}

	srv := profiler.New(addr, metrics.Handler(cmd.app.Registry), cmd.app.DebugStatus)
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("start debug server: %w", err)
	}
	log.Info().Str("addr", srv.Addr()).Msg("debug server listening")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("debug server shutdown")
		}
	}, nil
}

// eventPrinter writes relay events as styled lines or JSON lines.
type eventPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	patterns []string
	json     bool
	now      func() time.Time
}

func newEventPrinter(w io.Writer, patterns []string, asJSON bool) *eventPrinter {
	return &eventPrinter{w: w, patterns: patterns, json: asJSON, now: time.Now}
}

// Wants reports whether events of kind pass the --type filter.
func (p *eventPrinter) Wants(kind relay.Kind) bool {
	if len(p.patterns) == 0 {
		return kind != relay.KindPong
	}
	for _, pattern := range p.patterns {
		if ok, _ := doublestar.Match(pattern, string(kind)); ok {
			return true
		}
	}
	return false
}

func (p *eventPrinter) Print(ev relay.Event) {
	if !p.Wants(ev.Kind()) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		_ = iojson.WriteLine(p.w, eventJSON(ev))
		return
	}

	at := styles.TextMutedStyle.Render(p.now().Format("15:04:05"))
	kind := styles.EventKindStyle.Render(string(ev.Kind()))
	_, _ = fmt.Fprintf(p.w, "%s %s %s\n", at, kind, Summary(ev))
}

type eventLine struct {
	Type      relay.Kind      `json:"type"`
	Timestamp string          `json:"timestamp,omitempty"`
	Frame     json.RawMessage `json:"frame,omitempty"`
	Event     relay.Event     `json:"event,omitempty"`
}

func eventJSON(ev relay.Event) eventLine {
	meta := ev.EventMeta()
	line := eventLine{Type: ev.Kind(), Timestamp: meta.Timestamp}
	if len(meta.Raw) > 0 {
		line.Frame = meta.Raw
	} else {
		line.Event = ev
	}
	return line
}

// Summary renders a one line description of ev.
func Summary(ev relay.Event) string {
	switch e := ev.(type) {
	case *relay.ConnectedEvent:
		if e.Message != "" {
			return e.Message
		}
		return "connected " + e.URL
	case *relay.DisconnectedEvent:
		return styles.TextWarningStyle.Render(orDash(e.Reason))
	case *relay.ErrorEvent:
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		return styles.TextErrorStyle.Render(orDash(msg))
	case *relay.PongEvent:
		return fmt.Sprintf("ping %d", e.SentAt)
	case *relay.ProductEvent:
		return productSummary(e)
	case *relay.SellerEvent:
		if e.Message == "" {
			return orDash(e.Name)
		}
		return e.Message
	case *relay.SettingsEvent:
		return orDash(e.Message)
	case *relay.UnknownEvent:
		return styles.TextMutedStyle.Render(string(e.Raw))
	}

	if d, ok := ledger.Draft(ev); ok {
		return d.Title + ": " + d.Message
	}

	switch e := ev.(type) {
	case *relay.OrderEvent:
		if e.Message == "" && e.OrderNumber != "" {
			return fmt.Sprintf("#%s %s", e.OrderNumber, e.Status)
		}
		return orDash(e.Message)
	case *relay.StockEvent:
		if e.Message == "" && e.UpdatedCount > 0 {
			return fmt.Sprintf("%d product(s) updated", e.UpdatedCount)
		}
		return orDash(e.Message)
	}
	return "-"
}

func productSummary(e *relay.ProductEvent) string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Title != "":
		return e.Title
	case e.UpdatedCount > 0:
		return fmt.Sprintf("%d product(s) updated", e.UpdatedCount)
	case e.SuccessCount > 0 || e.ErrorCount > 0:
		return fmt.Sprintf("%d synced, %d failed", e.SuccessCount, e.ErrorCount)
	case e.DeletedCount > 0:
		return fmt.Sprintf("%d product(s) deleted", e.DeletedCount)
	case e.ProductID != 0:
		return fmt.Sprintf("product #%d", e.ProductID)
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
