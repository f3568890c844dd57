package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/mcpserver"
	"github.com/cortexdesk/cortexrag/internal/output"
)

func newServeMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Expose retrieval and indexing as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceRoot()
			if err != nil {
				return err
			}
			co, log, cleanup, err := buildCoordinator(root)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := co.StartWatching(ctx); err != nil {
				return err
			}

			srv := mcpserver.New(co, log)
			output.New(cmd.ErrOrStderr()).Status("", "serving MCP tools over stdio")
			return srv.Serve(ctx)
		},
	}
}
