package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mintmarkhq/mintmark/internal/bootstrap"
)

// reclaimCommand runs one stuck-job reclamation sweep and exits.
func reclaimCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Reclaim stuck jobs once and exit",
		Long:  `Returns running jobs whose heartbeat is older than the lock timeout to the pending state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New()
			if err != nil {
				return err
			}
			defer app.Close()

			count, err := app.Jobs.ReclaimStuck(cmd.Context(), app.Config.Worker.LockTimeout)
			if err != nil {
				return fmt.Errorf("reclamation sweep failed: %w", err)
			}

			app.Logger.Info("Reclamation sweep finished",
				"reclaimed", count, "lock_timeout", app.Config.Worker.LockTimeout.String())
			fmt.Printf("reclaimed %d stuck job(s)\n", count)
			return nil
		},
	}
}
