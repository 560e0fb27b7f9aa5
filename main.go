package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/commands"
	"github.com/dropzy/dropzy/internal/core/config"
	"github.com/dropzy/dropzy/internal/core/logging"
	"github.com/dropzy/dropzy/internal/core/notify"
	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
	"github.com/dropzy/dropzy/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		dropzyApp = &dropzy.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "dropzy",
		Usage:     "Run your dropshipping store from the terminal",
		UsageText: "dropzy [global options] command [command options]",
		Description: `dropzy talks to the Dropzy backend: products imported from Trendyol
sellers, Shopify orders, shipments and stock sync.

Responses are cached on this device and served when the server is
unreachable. 'dropzy watch' streams live events and keeps a local
notification history.

Run 'dropzy login' to get started.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("DROPZY_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/dropzy.log)",
				Sources:     cli.EnvVars("DROPZY_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DROPZY_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("DROPZY_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print machine readable JSON",
				Sources:     cli.EnvVars("DROPZY_JSON"),
				Destination: &flags.JSON,
			},
			&cli.BoolFlag{
				Name:        "ephemeral",
				Usage:       "keep all state in memory, nothing is written to the data directory",
				Sources:     cli.EnvVars("DROPZY_EPHEMERAL"),
				Destination: &flags.Ephemeral,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logFile := flags.LogFile
			if logFile == "" && !flags.Ephemeral {
				logFile = filepath.Join(flags.DataDir, "dropzy.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile, logging.ContextHook{})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.UI.Theme)
			styles.SetTheme(palette)

			a, err := dropzy.New(ctx, cfg, dropzy.Options{
				Ephemeral: flags.Ephemeral,
				Pusher:    notify.NewTerminalPusher(os.Stderr, cfg.UI.Bell),
			})
			if err != nil {
				return ctx, err
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*dropzyApp = *a

			return printer.NewContext(ctx, printer.New(c.Root().Writer, os.Stderr)), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if err := dropzyApp.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close")
				return err
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewAuthCmd(flags, dropzyApp).Register(app)
	app = commands.NewStatusCmd(flags, dropzyApp).Register(app)
	app = commands.NewDoctorCmd(flags, dropzyApp).Register(app)
	app = commands.NewAPICmd(flags, dropzyApp).Register(app)
	app = commands.NewReportsCmd(flags, dropzyApp).Register(app)
	app = commands.NewCatalogCmd(flags, dropzyApp).Register(app)
	app = commands.NewOrdersCmd(flags, dropzyApp).Register(app)
	app = commands.NewWatchCmd(flags, dropzyApp).Register(app)
	app = commands.NewNotificationsCmd(flags, dropzyApp).Register(app)
	app = commands.NewCacheCmd(flags, dropzyApp).Register(app)
	app = commands.NewDBCmd(flags, dropzyApp).Register(app)
	app = commands.NewConfigCmd(flags, dropzyApp).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		if flags.JSON {
			_ = iojson.WriteError(runErr)
		} else if msg := runErr.Error(); msg != "" {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, msg)
		}
		exitCode = 1
	}

	os.Exit(exitCode)
}
