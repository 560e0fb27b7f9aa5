package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

type APICmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	body    iojson.FileReader[any]
	params  []string
	noCache bool
	noAuth  bool
}

func NewAPICmd(flags *Flags, app *dropzy.App) *APICmd {
	return &APICmd{flags: flags, app: app}
}

func (cmd *APICmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "api",
		Usage:     "Send a request to any API endpoint",
		UsageText: "dropzy api <METHOD> <endpoint> [--param key=value] [-f body.json]",
		Description: `Sends a request through the API client with retries, caching and the
stored session token. GET responses are cached unless --no-cache is set.

Examples:
  dropzy api GET /api/products --param page=2
  echo '{"status":"shipped"}' | dropzy api PUT /api/orders/12/status -f -`,
		Flags: []cli.Flag{
			cmd.body.Flag(),
			&cli.StringSliceFlag{
				Name:        "param",
				Aliases:     []string{"p"},
				Usage:       "query parameter as key=value, repeatable",
				Destination: &cmd.params,
			},
			&cli.BoolFlag{
				Name:        "no-cache",
				Usage:       "bypass the response cache",
				Destination: &cmd.noCache,
			},
			&cli.BoolFlag{
				Name:        "no-auth",
				Usage:       "do not send the session token",
				Destination: &cmd.noAuth,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *APICmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <METHOD> <endpoint>, got %d argument(s)", c.Args().Len())
	}

	req, err := cmd.request(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	if err := connect(ctx, cmd.app); err != nil {
		return err
	}

	resp, err := cmd.app.Client.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.Source != api.SourceNetwork {
		printer.Ctx(ctx).Infof("served from %s cache", resp.Source)
	}
	return writeData(c, cmd.flags, resp.Data)
}

func (cmd *APICmd) request(method, endpoint string) (api.Request, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return api.Request{}, fmt.Errorf("unsupported method %q", method)
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	req := api.Request{
		Method:   method,
		Endpoint: endpoint,
		NoCache:  cmd.noCache,
		NoAuth:   cmd.noAuth,
	}

	if len(cmd.params) > 0 {
		req.Params = make(map[string]any, len(cmd.params))
		for _, kv := range cmd.params {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return api.Request{}, fmt.Errorf("invalid param %q, want key=value", kv)
			}
			req.Params[k] = v
		}
	}

	if cmd.body.Provided() {
		if method == http.MethodGet {
			return api.Request{}, fmt.Errorf("GET requests take no body")
		}
		body, err := cmd.body.Read()
		if err != nil {
			return api.Request{}, err
		}
		req.Body = body
	}
	return req, nil
}

