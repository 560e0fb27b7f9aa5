package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

// connect resolves the API base URL before the first request of a command.
func connect(ctx context.Context, app *dropzy.App) error {
	if _, err := app.ResolveURL(ctx); err != nil {
		return fmt.Errorf("resolve api url: %w", err)
	}
	return nil
}

// writeData prints an API payload as indented JSON. In text mode a
// {success, data} envelope is unwrapped first and terminals get colors.
func writeData(c *cli.Command, flags *Flags, raw json.RawMessage) error {
	w := c.Root().Writer
	if !flags.JSON {
		data, err := api.DecodeEnvelope[json.RawMessage](raw)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			raw = data
		}
		if printer.IsTerminal(w) && json.Valid(raw) {
			_, err := fmt.Fprintln(w, printer.HighlightJSON(raw))
			return err
		}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return iojson.WriteWith(w, os.Stderr, v)
}

// argID parses the positional argument at i as a numeric id.
func argID(c *cli.Command, i int, name string) (int64, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// argIDs parses every positional argument as a numeric id.
func argIDs(c *cli.Command, name string) ([]int64, error) {
	if c.Args().Len() == 0 {
		return nil, fmt.Errorf("at least one %s is required", name)
	}
	ids := make([]int64, 0, c.Args().Len())
	for i := range c.Args().Len() {
		id, err := argID(c, i, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// apiAction wraps a call that returns a raw payload into a cli.ActionFunc
// that resolves the base URL first and prints the result.
func apiAction(flags *Flags, app *dropzy.App, call func(ctx context.Context, c *cli.Command) (json.RawMessage, error)) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if err := connect(ctx, app); err != nil {
			return err
		}
		raw, err := call(ctx, c)
		if err != nil {
			return err
		}
		return writeData(c, flags, raw)
	}
}
