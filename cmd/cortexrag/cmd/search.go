package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/coordinator"
	"github.com/cortexdesk/cortexrag/internal/output"
)

type searchOptions struct {
	chatpdf   bool
	sessionID string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a message through the decision subgraph and print the retrieved context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
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
			mode := ""
			if opts.chatpdf {
				mode = "chatpdf"
			}
			result, err := co.Retrieve(cmd.Context(), coordinator.RetrieveRequest{
				UserMessage:      query,
				ConversationMode: mode,
				HasSessionPDF:    opts.sessionID != "",
				WorkspaceID:      root,
				SessionID:        opts.sessionID,
			})
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}

			if result.Skipped {
				out.Statusf("", "retrieval skipped: %s", result.SkipReason)
				return nil
			}
			if !result.Grounded {
				out.Statusf("", "no results for %q (scope: %s)", query, result.UsedScope)
				return nil
			}

			out.Statusf("", "%d citation(s), scope=%s", len(result.Citations), result.UsedScope)
			out.Newline()
			fmt.Fprintln(cmd.OutOrStdout(), result.ContextText)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.chatpdf, "chatpdf", false, "force session-local scope (ChatPDF mode)")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session ID to scope the search to")

	return cmd
}
