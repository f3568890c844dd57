package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/coordinator"
	"github.com/cortexdesk/cortexrag/internal/output"
	"github.com/cortexdesk/cortexrag/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the workspace's configuration and index size",
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
			out.Statusf("", "workspace root: %s", root)
			out.Statusf("", "database: %s", dataDir(root))

			entries, err := co.ListRegistry(cmd.Context(), coordinator.ListRegistryRequest{
				Scope: store.ScopeRef{Kind: store.ScopeWorkspace, ID: root},
			})
			if err != nil {
				return fmt.Errorf("read registry: %w", err)
			}
			totalChunks := 0
			for _, e := range entries {
				totalChunks += e.ChunkCount
			}
			out.Statusf("", "documents indexed: %d (%d chunks)", len(entries), totalChunks)
			return nil
		},
	}
}
