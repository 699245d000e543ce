// Command lattice runs CRUD operations against the configured backend and
// prints the result as JSON.
//
//	lattice [flags] <op> <mapper> [args...]
//
// Backend and mappers come from the environment (see internal/config).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/internal/config"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: lattice [flags] <op> <mapper> [args...]

operations:
  create      <mapper> <object|array>
  find        <mapper> <id>
  find-all    <mapper> [query]
  update      <mapper> <id> <object>
  update-all  <mapper> <object> [query]
  update-many <mapper> <array>
  destroy     <mapper> <id>
  destroy-all <mapper> [query]

objects, arrays and queries are JSON.

flags:
`

// CLI holds the state of one invocation.
type CLI struct {
	adapter  *adapter.Adapter
	registry *adapter.Registry
	out      io.Writer
	opts     *adapter.Options
	pretty   bool
}

func main() {
	with := flag.String("with", "", "Comma-separated relations to eager load")
	raw := flag.Bool("raw", false, "Print the full response envelope")
	kind := flag.String("kind", "", "Override the mapper's kind")
	pretty := flag.Bool("pretty", false, "Indent JSON output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("lattice v%s\n", Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args(), *with, *raw, *kind, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "lattice: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, with string, raw bool, kind string, pretty bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	store, closeStore, err := cfg.OpenStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	acfg := adapter.DefaultConfig()
	acfg.Logger = logger
	a, err := adapter.New(store, acfg)
	if err != nil {
		return err
	}

	cli := &CLI{
		adapter:  a,
		registry: registry,
		out:      os.Stdout,
		opts:     &adapter.Options{Raw: raw, Kind: kind, With: splitList(with)},
		pretty:   pretty,
	}
	return cli.Exec(ctx, args)
}

// Exec runs one operation. args[0] is the operation and args[1] the mapper name.
func (c *CLI) Exec(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("missing operation or mapper")
	}
	op, rest := args[0], args[2:]
	m, ok := c.registry.Lookup(args[1])
	if !ok {
		// Unregistered names are used as both name and kind.
		m = &adapter.Mapper{Name: args[1], Kind: args[1]}
	}

	var (
		resp *adapter.Response
		err  error
	)
	switch op {
	case "create":
		if err := need(op, rest, 1, 1); err != nil {
			return err
		}
		if strings.HasPrefix(strings.TrimSpace(rest[0]), "[") {
			var records []adapter.Record
			if err := decodeArg("records", rest[0], &records); err != nil {
				return err
			}
			resp, err = c.adapter.CreateMany(ctx, m, records, c.opts)
			break
		}
		var props adapter.Record
		if err := decodeArg("record", rest[0], &props); err != nil {
			return err
		}
		resp, err = c.adapter.Create(ctx, m, props, c.opts)

	case "find":
		if err := need(op, rest, 1, 1); err != nil {
			return err
		}
		resp, err = c.adapter.Find(ctx, m, rest[0], c.opts)

	case "find-all":
		if err := need(op, rest, 0, 1); err != nil {
			return err
		}
		q, qerr := queryArg(rest, 0)
		if qerr != nil {
			return qerr
		}
		resp, err = c.adapter.FindAll(ctx, m, q, c.opts)

	case "update":
		if err := need(op, rest, 2, 2); err != nil {
			return err
		}
		var props adapter.Record
		if err := decodeArg("record", rest[1], &props); err != nil {
			return err
		}
		resp, err = c.adapter.Update(ctx, m, rest[0], props, c.opts)

	case "update-all":
		if err := need(op, rest, 1, 2); err != nil {
			return err
		}
		var props adapter.Record
		if err := decodeArg("record", rest[0], &props); err != nil {
			return err
		}
		q, qerr := queryArg(rest, 1)
		if qerr != nil {
			return qerr
		}
		resp, err = c.adapter.UpdateAll(ctx, m, props, q, c.opts)

	case "update-many":
		if err := need(op, rest, 1, 1); err != nil {
			return err
		}
		var records []adapter.Record
		if err := decodeArg("records", rest[0], &records); err != nil {
			return err
		}
		resp, err = c.adapter.UpdateMany(ctx, m, records, c.opts)

	case "destroy":
		if err := need(op, rest, 1, 1); err != nil {
			return err
		}
		resp, err = c.adapter.Destroy(ctx, m, rest[0], c.opts)

	case "destroy-all":
		if err := need(op, rest, 0, 1); err != nil {
			return err
		}
		q, qerr := queryArg(rest, 0)
		if qerr != nil {
			return qerr
		}
		resp, err = c.adapter.DestroyAll(ctx, m, q, c.opts)

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return err
	}
	return c.print(resp.Value())
}

func (c *CLI) print(v any) error {
	enc := json.NewEncoder(c.out)
	if c.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func need(op string, args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return fmt.Errorf("%s: expected %d to %d arguments, got %d", op, lo, hi, len(args))
	}
	return nil
}

func decodeArg(name, arg string, v any) error {
	if err := json.Unmarshal([]byte(arg), v); err != nil {
		return fmt.Errorf("invalid %s JSON: %w", name, err)
	}
	return nil
}

func queryArg(args []string, i int) (adapter.Query, error) {
	if i >= len(args) {
		return nil, nil
	}
	var q adapter.Query
	if err := decodeArg("query", args[i], &q); err != nil {
		return nil, err
	}
	return q, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
