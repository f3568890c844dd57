package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/output"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace for changes and index them as they happen",
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

			out := output.New(cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := co.StartWatching(ctx); err != nil {
				return err
			}
			out.Successf("watching %s (press Ctrl+C to stop)", root)

			<-ctx.Done()
			out.Status("", "stopping watcher")
			return nil
		},
	}
}
