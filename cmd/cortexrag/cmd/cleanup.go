package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/output"
)

func newCleanupCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run an on-demand pass deleting stale session-scoped documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceRoot()
			if err != nil {
				return err
			}
			co, _, cleanup, err := buildCoordinator(root)
			if err != nil {
				return err
			}
			defer cleanup()

			var override time.Duration
			if retentionDays > 0 {
				override = time.Duration(retentionDays) * 24 * time.Hour
			}

			result, err := co.CleanupStale(cmd.Context(), override)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("removed %d stale session document(s)", result.RemovedCount)
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override the configured retention window for this run only")
	return cmd
}
