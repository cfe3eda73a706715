package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canvasync/canvasync/internal/frequency"
	"github.com/canvasync/canvasync/internal/history"
)

// NewRecommendCommand creates the recommend command: it replays the
// retained history through the recommendation policy and reports whether
// a different interval would serve better.
func NewRecommendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recommend",
		Short:         "Recommend a sync interval from recent history",
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

			records, err := store.Recent(cmd.Context(), 0)
			if err != nil {
				return err
			}
			for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
				records[i], records[j] = records[j], records[i]
			}

			settings := cfg.Settings()
			manager := frequency.NewManager(settings, cfg.Sync.Adaptive,
				frequency.WithPolicy(cfg.ThresholdPolicy()))
			manager.Preload(records)

			current := manager.CurrentInterval()
			recommended := manager.Recommend()
			if recommended == current {
				fmt.Fprintf(cmd.OutOrStdout(), "Current interval %s still fits.\n", current)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recommend switching from %s to %s.\n", current, recommended)
			return nil
		},
	}
	return cmd
}
