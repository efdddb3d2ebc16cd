package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/bpdoc/pkg/config"
	"github.com/matzehuels/bpdoc/pkg/export"
	"github.com/matzehuels/bpdoc/pkg/schedule"
	"github.com/matzehuels/bpdoc/pkg/sink"
)

// outputFlags select the snapshot source and document destination. Flags
// override the loaded config only when set explicitly.
type outputFlags struct {
	source  string
	out     string
	sink    string
	kind    string
	noCache bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "directory of artifact snapshots")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory for the file sink")
	cmd.Flags().StringVar(&f.sink, "sink", "", "document sink: file, memory, s3, postgres, mongo")
	cmd.Flags().StringVar(&f.kind, "kind", "", "artifact class to export")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "write every document even if unchanged")
}

// apply returns a copy of cfg with explicitly set flags applied.
func (f *outputFlags) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	out := *cfg
	flags := cmd.Flags()
	if flags.Changed("source") {
		out.Source = f.source
	}
	if flags.Changed("out") {
		out.Sink.Dir = f.out
	}
	if flags.Changed("sink") {
		out.Sink.Type = f.sink
	}
	if flags.Changed("kind") {
		out.Kind = f.kind
	}
	if err := out.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &out, nil
}

// runFlags tune export runs.
type runFlags struct {
	chunk   int
	workers int
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.chunk, "chunk", 0, "artifacts per chunk (default 64)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "serialization workers per chunk (default 4)")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("chunk") {
		cfg.Export.ChunkSize = f.chunk
	}
	if cmd.Flags().Changed("workers") {
		cfg.Export.Workers = f.workers
	}
}

// exportOptions converts config to coordinator options.
func exportOptions(cfg *config.Config) export.Options {
	opts := export.Options{
		ChunkSize: cfg.Export.ChunkSize,
		Workers:   cfg.Export.Workers,
	}
	if cfg.Export.Retries > 0 {
		opts.Backoff = sink.Backoff{Attempts: cfg.Export.Retries, Delay: cfg.Export.RetryDelay}
		if opts.Backoff.Delay == 0 {
			opts.Backoff.Delay = sink.DefaultBackoff.Delay
		}
	}
	return opts
}

// scheduleOptions converts config to debounce options.
func scheduleOptions(cfg *config.Config) schedule.Options {
	return schedule.Options{
		Window:         cfg.Watch.Window,
		BatchThreshold: cfg.Watch.BatchThreshold,
		BatchExtension: cfg.Watch.BatchExtension,
	}
}
