package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

type ConfigCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	noProbe bool
}

// NewConfigCmd creates the config command group.
func NewConfigCmd(flags *Flags, app *dropzy.App) *ConfigCmd {
	return &ConfigCmd{flags: flags, app: app}
}

// Register adds the config commands to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: cmd.runShow,
			},
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "dropzy config validate",
				Description: "Validates the configuration file, the data directory and the API URLs.",
				Action:      cmd.runValidate,
			},
			{
				Name:      "set-url",
				Usage:     "Point the client at another API server",
				UsageText: "dropzy config set-url <url> [--no-probe]",
				Description: `Saves the base URL on this device. It takes precedence over api.base_url
until 'dropzy config reset-url' is run. The server is probed first unless
--no-probe is set.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "no-probe",
						Usage:       "save without checking the server",
						Destination: &cmd.noProbe,
					},
				},
				Action: cmd.runSetURL,
			},
			{
				Name:   "reset-url",
				Usage:  "Forget the saved API URL",
				Action: cmd.runResetURL,
			},
			{
				Name:      "probe",
				Usage:     "Check a server's health endpoint",
				UsageText: "dropzy config probe [url]",
				Action:    cmd.runProbe,
			},
		},
	})

	return app
}

func (cmd *ConfigCmd) runShow(ctx context.Context, c *cli.Command) error {
	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, cmd.flags.Config)
	}

	enc := yaml.NewEncoder(c.Root().Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cmd.flags.Config); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	p.Infof("config file: %s", cmd.flags.ConfigPath)
	p.Infof("data dir: %s", cmd.flags.Config.DataDir)
	return nil
}

func (cmd *ConfigCmd) runValidate(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	err := cmd.flags.Config.ValidateDeep(cmd.flags.ConfigPath)

	if cmd.flags.JSON {
		out := struct {
			Valid bool   `json:"valid"`
			Error string `json:"error,omitempty"`
		}{Valid: err == nil}
		if err != nil {
			out.Error = err.Error()
		}
		if werr := iojson.WriteWith(c.Root().Writer, os.Stderr, out); werr != nil {
			return werr
		}
		if err != nil {
			return cli.Exit("", 1)
		}
		return nil
	}

	if err != nil {
		p.Errorf("%v", err)
		return cli.Exit("", 1)
	}
	p.Successf("Configuration is valid")
	return nil
}

func (cmd *ConfigCmd) runSetURL(ctx context.Context, c *cli.Command) error {
	raw := c.Args().First()
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	if err := cmd.app.Bootstrap.SetAPIURL(ctx, raw, !cmd.noProbe); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("API URL set to %s", cmd.app.Bootstrap.URL())
	return nil
}

func (cmd *ConfigCmd) runResetURL(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.Bootstrap.ResetAPIURL(ctx); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("API URL reset to %s", cmd.app.Bootstrap.URL())
	return nil
}

func (cmd *ConfigCmd) runProbe(ctx context.Context, c *cli.Command) error {
	target := c.Args().First()
	if target == "" {
		if err := connect(ctx, cmd.app); err != nil {
			return err
		}
		target = cmd.app.Bootstrap.URL()
	}

	h, err := cmd.app.Bootstrap.Probe(ctx, target)
	if cmd.flags.JSON {
		out := struct {
			URL     string `json:"url"`
			Healthy bool   `json:"healthy"`
			Status  string `json:"status,omitempty"`
			Version string `json:"version,omitempty"`
			Error   string `json:"error,omitempty"`
		}{URL: target, Healthy: err == nil, Status: h.Status, Version: h.Version}
		if err != nil {
			out.Error = err.Error()
		}
		return iojson.WriteWith(c.Root().Writer, os.Stderr, out)
	}

	if err != nil {
		return err
	}
	p := printer.Ctx(ctx)
	if h.Version != "" {
		p.Successf("%s is %s (version %s)", target, h.Status, h.Version)
		return nil
	}
	p.Successf("%s is %s", target, h.Status)
	return nil
}
