package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/dropzy/dropzy/internal/core/cache"
	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

type CacheCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	match string
}

func NewCacheCmd(flags *Flags, app *dropzy.App) *CacheCmd {
	return &CacheCmd{flags: flags, app: app}
}

func (cmd *CacheCmd) Register(app *cli.Command) *cli.Command {
	matchFlag := &cli.StringFlag{
		Name:        "match",
		Aliases:     []string{"m"},
		Usage:       "glob over cache keys, e.g. 'GET_/api/products**'",
		Destination: &cmd.match,
		Validator: func(s string) error {
			if !doublestar.ValidatePattern(s) {
				return fmt.Errorf("invalid glob %q", s)
			}
			return nil
		},
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the local response cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show entry count and size",
				Action: cmd.runStats,
			},
			{
				Name:   "keys",
				Usage:  "List cache keys with their freshness",
				Flags:  []cli.Flag{matchFlag},
				Action: cmd.runKeys,
			},
			{
				Name:   "clear",
				Usage:  "Delete cache entries, all of them unless --match is set",
				Flags:  []cli.Flag{matchFlag},
				Action: cmd.runClear,
			},
			{
				Name:   "sweep",
				Usage:  "Delete expired entries",
				Action: cmd.runSweep,
			},
		},
	})
	return app
}

type cacheStats struct {
	Enabled bool   `json:"enabled"`
	Entries int    `json:"entries"`
	Fresh   int    `json:"fresh"`
	Stale   int    `json:"stale"`
	Bytes   int64  `json:"bytes"`
	TTL     string `json:"ttl"`
}

func (cmd *CacheCmd) runStats(ctx context.Context, c *cli.Command) error {
	keys, err := cmd.app.Cache.Keys(ctx)
	if err != nil {
		return err
	}
	size, err := cmd.app.Cache.Size(ctx)
	if err != nil {
		return err
	}

	stats := cacheStats{
		Enabled: cmd.app.Client.CacheEnabled(),
		Entries: len(keys),
		Bytes:   size,
		TTL:     cmd.app.Cache.TTL().String(),
	}
	for _, k := range keys {
		if cmd.app.Cache.Lookup(ctx, k).State == cache.Fresh {
			stats.Fresh++
		} else {
			stats.Stale++
		}
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, stats)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Enabled\t%t\n", stats.Enabled)
	_, _ = fmt.Fprintf(w, "Entries\t%d (%d fresh, %d stale)\n", stats.Entries, stats.Fresh, stats.Stale)
	_, _ = fmt.Fprintf(w, "Size\t%s\n", humanBytes(stats.Bytes))
	_, _ = fmt.Fprintf(w, "TTL\t%s\n", stats.TTL)
	return w.Flush()
}

type cacheKey struct {
	Key   string `json:"key"`
	State string `json:"state"`
	Age   string `json:"age"`
}

func (cmd *CacheCmd) runKeys(ctx context.Context, c *cli.Command) error {
	keys, err := cmd.matching(ctx)
	if err != nil {
		return err
	}

	out := make([]cacheKey, 0, len(keys))
	for _, k := range keys {
		res := cmd.app.Cache.Lookup(ctx, k)
		out = append(out, cacheKey{Key: k, State: res.State.String(), Age: res.Age.Round(time.Second).String()})
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, out)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	for _, k := range out {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", styles.StatusStyle(k.State).Render(k.State), k.Age, k.Key)
	}
	return w.Flush()
}

func (cmd *CacheCmd) runClear(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.match == "" {
		if err := cmd.app.Cache.ClearAll(ctx); err != nil {
			return err
		}
		p.Successf("Cache cleared")
		return nil
	}

	n, err := cmd.app.Cache.RemoveMatching(ctx, cmd.matches)
	if err != nil {
		return err
	}
	p.Successf("Removed %d entr%s", n, plural(n, "y", "ies"))
	return nil
}

func (cmd *CacheCmd) runSweep(ctx context.Context, c *cli.Command) error {
	n, err := cmd.app.Cache.ClearExpired(ctx)
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Removed %d expired entr%s", n, plural(n, "y", "ies"))
	return nil
}

func (cmd *CacheCmd) matching(ctx context.Context) ([]string, error) {
	keys, err := cmd.app.Cache.Keys(ctx)
	if err != nil {
		return nil, err
	}
	if cmd.match == "" {
		return keys, nil
	}
	out := keys[:0]
	for _, k := range keys {
		if cmd.matches(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (cmd *CacheCmd) matches(key string) bool {
	ok, _ := doublestar.Match(cmd.match, key)
	return ok
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
