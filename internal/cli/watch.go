package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bpdoc/pkg/config"
	"github.com/matzehuels/bpdoc/pkg/session"
)

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		out     outputFlags
		run     runFlags
		window  time.Duration
		batch   int
		pulse   time.Duration
		status  string
		noFirst bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Export, then re-export artifacts as they change",
		Long: `Watch runs a full export and then monitors the source directory. Changed
artifacts are re-exported once they have been quiet for the debounce window;
removed artifacts have their documents deleted. Large bursts of changes
extend the window so they settle before anything is written.

Stop with Ctrl-C.`,
		Example: `  bpdoc watch --source Saved/Snapshots --window 3s
  bpdoc watch --status localhost:7777`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := out.apply(cmd, c.config)
			if err != nil {
				return err
			}
			run.apply(cmd, cfg)
			flags := cmd.Flags()
			if flags.Changed("window") {
				cfg.Watch.Window = window
			}
			if flags.Changed("batch") {
				cfg.Watch.BatchThreshold = batch
			}
			if flags.Changed("pulse") {
				cfg.Watch.Pulse = pulse
			}
			if flags.Changed("status") {
				cfg.Watch.Status = status
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runWatch(cmd.Context(), cfg, out.noCache, !noFirst)
		},
	}
	out.register(cmd)
	run.register(cmd)
	cmd.Flags().DurationVar(&window, "window", 0, "quiet time before a changed artifact is exported (default 2s)")
	cmd.Flags().IntVar(&batch, "batch", 0, "pending count that extends the window (default 32, negative disables)")
	cmd.Flags().DurationVar(&pulse, "pulse", 0, "rescan interval (default 500ms)")
	cmd.Flags().StringVar(&status, "status", "", "serve /healthz and /status on this address")
	cmd.Flags().BoolVar(&noFirst, "skip-initial", false, "skip the initial full export")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, cfg *config.Config, noCache, initial bool) error {
	env, err := c.openEnv(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer env.Close()

	if initial {
		stop := trackExport(ctx, "Exporting "+cfg.Source)
		res, err := env.coord.ExportAll(ctx)
		stop()
		if res != nil {
			printResult(res, env.out)
		}
		if err != nil {
			return err
		}
	} else if _, err := env.host.Enumerate(ctx); err != nil {
		// Enumerate records the baseline that scans diff against.
		return err
	}

	sess := session.New(env.host, env.coord, session.Options{
		Kind:     cfg.Kind,
		Schedule: scheduleOptions(cfg),
	}, nil, c.Logger)
	if err := sess.Start(); err != nil {
		return err
	}
	defer func() {
		if sess.Active() {
			_ = sess.Stop()
		}
	}()

	if cfg.Watch.Status != "" {
		srv := &http.Server{Addr: cfg.Watch.Status, Handler: sess.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				c.Logger.Error("status server failed", "addr", cfg.Watch.Status, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		printDetail("Status: http://%s/status", cfg.Watch.Status)
	}

	window := sess.Status().Window
	printInfo("Watching %s (window %s, pulse %s)", StyleHighlight.Render(cfg.Source), window, cfg.Watch.Pulse)
	err = sess.Run(ctx, cfg.Watch.Pulse, env.host.Scan)

	st := sess.Status()
	printSuccess("Stopped after %d pulses", st.Pulses)
	printCounts(st.Exported, st.Removed, 0)
	if st.Failed > 0 {
		printWarning("%d exports failed while watching", st.Failed)
	}
	return err
}
