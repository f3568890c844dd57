package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/coordinator"
	"github.com/cortexdesk/cortexrag/internal/output"
	"github.com/cortexdesk/cortexrag/internal/store"
)

func newRegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "List the current indexing state of every document in the workspace",
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

			entries, err := co.ListRegistry(cmd.Context(), coordinator.ListRegistryRequest{
				Scope: store.ScopeRef{Kind: store.ScopeWorkspace, ID: root},
			})
			if err != nil {
				return fmt.Errorf("list registry: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			if len(entries) == 0 {
				out.Status("", "no documents indexed yet")
				return nil
			}
			for _, e := range entries {
				out.Statusf("", "%s  chunks=%d  indexed_at=%s", e.SourcePath, e.ChunkCount, e.IndexedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
}
