package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/canvasync/canvasync/internal/frequency"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Fixture string
	Tick    string
}

// NewWatchCommand creates the watch command: the external periodic
// trigger the engine itself deliberately does not own.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the periodic sync trigger",
		Long: `Run the periodic trigger loop.

The engine never owns a timer: it only answers "should a sync run now"
and "what interval should apply". watch is that external trigger. On
every tick it consults ShouldSyncNow and starts a full pass when one is
due; the adaptive interval decides how much wall time must have elapsed.

Stops cleanly on SIGINT/SIGTERM. A pass in flight at shutdown is
cancelled cooperatively and runs to its next safe point.

Example:
  canvasync watch --fixture assignments.yaml
  canvasync watch --fixture assignments.yaml --tick 30s`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "assignment fixture file (YAML, required)")
	cmd.Flags().StringVar(&opts.Tick, "tick", "1m", "how often to consult ShouldSyncNow")
	cmd.MarkFlagRequired("fixture")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := buildHarness(ctx, cfg, opts.Fixture)
	if err != nil {
		return err
	}
	defer h.Close()

	// The trigger has no hardware to probe in this harness; report
	// unconstrained conditions and let the adaptive interval work off
	// the configured flags and history alone.
	cond := frequency.Conditions{OnWifi: true}

	c := cron.New()
	_, err = c.AddFunc("@every "+opts.Tick, func() {
		if !h.orch.ShouldSyncNow(cond) {
			return
		}
		slog.Info("sync due", "interval", h.orch.AdaptedSyncInterval(cond).String())
		if _, err := h.orch.PerformFullSync(ctx); err != nil {
			slog.Warn("triggered sync failed", "error", err)
		}
		if rec := h.manager.Recommend(); rec != h.manager.CurrentInterval() {
			slog.Info("consider changing sync interval", "recommended", rec.String())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid --tick: %w", err)
	}

	slog.Info("watch started",
		"tick", opts.Tick,
		"interval", h.orch.AdaptedSyncInterval(cond).String())
	c.Start()

	<-ctx.Done()
	slog.Info("watch stopping")
	h.orch.CancelSync()

	// Wait for a dispatched tick to finish before closing the store.
	<-c.Stop().Done()
	return nil
}
