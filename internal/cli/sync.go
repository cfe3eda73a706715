package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Fixture     string
	Incremental bool
	Since       string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		Long: `Run one reconciliation pass against a fixture assignment file.

The pass runs the real engine end to end (calendar reconciliation,
conflict resolution, reminders, history recording) over in-memory device
gateways, and appends its outcome to the sync history database.

Example:
  canvasync sync --fixture assignments.yaml
  canvasync sync --fixture assignments.yaml --incremental --since 2026-08-01T00:00:00Z`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "assignment fixture file (YAML, required)")
	cmd.Flags().BoolVar(&opts.Incremental, "incremental", false, "run an incremental pass instead of a full one")
	cmd.Flags().StringVar(&opts.Since, "since", "", "incremental watermark (RFC 3339)")
	cmd.MarkFlagRequired("fixture")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	h, err := buildHarness(ctx, cfg, opts.Fixture)
	if err != nil {
		return err
	}
	defer h.Close()

	var since *time.Time
	if opts.Since != "" {
		t, err := time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		since = &t
	}

	if opts.Incremental {
		res, err := h.orch.PerformIncrementalSync(ctx, since)
		if err != nil {
			return err
		}
		out, err := renderResult(res, opts.Format)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	res, err := h.orch.PerformFullSync(ctx)
	if err != nil {
		return err
	}
	out, err := renderResult(res, opts.Format)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
