// Package main provides the entry point for the codeatlas CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/cmd/codeatlas/commands"
	"github.com/codeatlas-dev/codeatlas/pkg/version"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "codeatlas",
		Short: "Codeatlas code-intelligence core",
		Long: `Codeatlas indexes a project's working tree into a queryable snapshot
of files, symbols, and cross-references, then answers impact-analysis
queries and applies reviewed multi-file changesets against it.

Commands:
  index      Scan and index a project into a snapshot
  impact     Compute the reverse-reference impact of changed symbols
  changeset  Propose, apply, and roll back multi-file changesets
  mcp        Start the Model Context Protocol server for agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to codeatlas config file")

	deps := commands.Globals{
		ConfigPath: &configPath,
		Verbose:    &verbose,
		Quiet:      &quiet,
	}

	rootCmd.AddCommand(commands.NewIndexCommand(deps))
	rootCmd.AddCommand(commands.NewImpactCommand(deps))
	rootCmd.AddCommand(commands.NewChangesetCommand(deps))
	rootCmd.AddCommand(commands.NewMCPCommand(deps))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "codeatlas %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
