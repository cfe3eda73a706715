package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/canvasync/canvasync/internal/history"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent sync passes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out, err := renderHistory(records, rootOpts.Format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Show windowed sync statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context(), window)
			if err != nil {
				return err
			}
			out, err := renderStats(stats, rootOpts.Format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", 0, "statistics window (0 = whole retained log)")
	return cmd
}
