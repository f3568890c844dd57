package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/coordinator"
	"github.com/cortexdesk/cortexrag/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index the workspace, or a single file relative to it",
		Long: `With no arguments, walks the whole workspace root and indexes every
non-excluded file (a full rescan). With a path argument, indexes just
that one file relative to the workspace root.`,
		Args: cobra.MaximumNArgs(1),
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
			ctx := cmd.Context()

			if len(args) == 1 {
				return runIndexOne(ctx, co, out, args[0])
			}
			return runIndexAll(ctx, co, out)
		},
	}
	return cmd
}

func runIndexOne(ctx context.Context, co *coordinator.Coordinator, out *output.Writer, path string) error {
	res, err := co.EnqueueFile(ctx, path)
	if err != nil {
		return fmt.Errorf("index %s: %w", path, err)
	}
	if res.Skipped {
		out.Statusf("", "%s unchanged, skipped", path)
		return nil
	}
	out.Successf("indexed %s (%d chunks, %s)", path, res.ChunkCount, res.Duration)
	return nil
}

func runIndexAll(ctx context.Context, co *coordinator.Coordinator, out *output.Writer) error {
	res, err := co.Rescan(ctx)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	out.Successf("scanned %d files: %d indexed, %d unchanged, %d failed (%s)",
		res.FilesFound, res.FilesIndexed, res.FilesSkipped, res.FilesFailed, res.Duration)
	return nil
}
