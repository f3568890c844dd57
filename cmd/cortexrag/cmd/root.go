// Package cmd provides the CLI commands for cortexrag.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cortexdesk/cortexrag/internal/config"
	"github.com/cortexdesk/cortexrag/internal/coordinator"
	"github.com/cortexdesk/cortexrag/internal/logging"
	"github.com/cortexdesk/cortexrag/pkg/version"
)

var rootFlags struct {
	root  string
	debug bool
}

// NewRootCmd builds the root cortexrag command and attaches every
// subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "cortexrag",
		Short:   "Hybrid lexical/vector retrieval engine for a workspace of Markdown documents",
		Version: version.Version,
	}
	root.SetVersionTemplate("cortexrag version {{.Version}}\n")

	root.PersistentFlags().StringVar(&rootFlags.root, "root", "", "workspace root directory (default: current directory)")
	root.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "enable debug logging to stderr")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(newRegistryCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeMCPCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// workspaceRoot resolves the --root flag to an absolute path, defaulting
// to the current working directory.
func workspaceRoot() (string, error) {
	dir := rootFlags.root
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

// dataDir returns the per-workspace directory cortexrag stores its
// database under.
func dataDir(root string) string {
	return filepath.Join(root, ".cortexrag")
}

// buildCoordinator loads configuration for root and constructs a
// Coordinator ready to drive the engine's six operations. The workspace
// ID is the root path itself, so two different directories never
// collide even if they share a base name.
func buildCoordinator(root string) (*coordinator.Coordinator, *slog.Logger, func(), error) {
	logCfg := logging.StderrOnlyConfig("info")
	if rootFlags.debug {
		logCfg.Level = "debug"
	}
	log, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup logging: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		logCleanup()
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	dbPath := filepath.Join(dataDir(root), "metadata.db")
	co, err := coordinator.New(cfg, root, root, dbPath, log)
	if err != nil {
		logCleanup()
		return nil, nil, nil, fmt.Errorf("construct coordinator: %w", err)
	}

	cleanup := func() {
		_ = co.Close()
		logCleanup()
	}
	return co, log, cleanup, nil
}
