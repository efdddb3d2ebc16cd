package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bpdoc/pkg/config"
	"github.com/matzehuels/bpdoc/pkg/export"
	"github.com/matzehuels/bpdoc/pkg/host"
)

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		out outputFlags
		run runFlags
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every artifact and rewrite the index",
		Long: `Export reads every snapshot under the source directory, writes one canonical
JSON document per artifact and rewrites the index. Documents of artifacts
that no longer exist are removed. Unchanged documents are skipped unless
--no-cache is given.`,
		Example: `  bpdoc export --source Saved/Snapshots --out Docs/Blueprints
  bpdoc export --sink s3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := out.apply(cmd, c.config)
			if err != nil {
				return err
			}
			run.apply(cmd, cfg)
			return c.runExport(cmd.Context(), cfg, out.noCache)
		},
	}
	out.register(cmd)
	run.register(cmd)
	return cmd
}

func (c *CLI) runExport(ctx context.Context, cfg *config.Config, noCache bool) error {
	env, err := c.openEnv(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer env.Close()

	stop := trackExport(ctx, "Exporting "+cfg.Source)
	res, err := env.coord.ExportAll(ctx)
	stop()
	if res != nil {
		printResult(res, env.out)
	}
	if err != nil {
		return err
	}
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d artifacts failed", n, res.Total)
	}
	printNextStep("Inspect the index", appName+" index")
	return nil
}

// exportEnv is a host, sink and coordinator opened from config.
type exportEnv struct {
	host  *host.Dir
	out   *output
	coord *export.Coordinator
}

func (e *exportEnv) Close() error { return e.out.Close() }

// openEnv opens the source directory and sink and seeds the coordinator's
// index from the sink, so the first full export can remove stale
// documents.
func (c *CLI) openEnv(ctx context.Context, cfg *config.Config, noCache bool) (*exportEnv, error) {
	h, err := host.NewDir(cfg.Source, c.Logger)
	if err != nil {
		return nil, err
	}
	h.Kind = cfg.Kind
	out, err := c.openOutput(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	coord, err := export.NewCoordinator(h, out.sink, exportOptions(cfg), c.Logger)
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	prog := newProgress(c.Logger)
	n, err := coord.LoadIndex(ctx)
	if err != nil {
		c.Logger.Warn("could not read existing index", "error", err)
	} else if n > 0 {
		prog.done(fmt.Sprintf("Loaded index with %d entries", n))
	}
	return &exportEnv{host: h, out: out, coord: coord}, nil
}

// maxWarnings caps the warnings printed after a run. All warnings are
// logged at debug level by the serializer.
const maxWarnings = 20

// printResult prints a run summary and every failure.
func printResult(res *export.Result, out *output) {
	switch {
	case res.Cancelled:
		printWarning("%s", res.Summary())
	case res.Failed() > 0:
		printError("%s", res.Summary())
	default:
		printSuccess("%s", res.Summary())
	}
	skipped := 0
	if out.cached != nil {
		skipped = out.cached.Skipped()
	}
	printCounts(res.Exported, res.Removed, skipped)
	printDetail("Destination: %s", out.where)

	for _, f := range res.Failures {
		printFailure(f.Path, f.Err)
	}
	for i, w := range res.Warnings {
		if i == maxWarnings {
			printDetail("... and %d more warnings (run with -v for all)", len(res.Warnings)-maxWarnings)
			break
		}
		printDetail("%s", w.String())
	}
}
