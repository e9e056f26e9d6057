package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/sweeper"
)

// newSweepCmd runs one reconciliation pass. The work queue lives inside the
// serving process, so this command only fails expired leases; stale pending
// jobs are picked up by the sweeper of a running server.
func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fails jobs whose worker lease has expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			s := sweeper.New(a.Store, nil, a.Clock, sweeper.Config{
				Interval:     a.Config.SweepInterval(),
				PendingGrace: a.Config.PendingGrace(),
				BatchSize:    a.Config.Sweeper.BatchSize,
			}, a.Logger.Named("sweeper"))
			res, err := s.RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			a.Logger.Info("sweep finished", zap.Int("abandoned", res.Abandoned))
			fmt.Fprintf(cmd.OutOrStdout(), "abandoned %d job(s)\n", res.Abandoned)
			return nil
		},
	}
}
