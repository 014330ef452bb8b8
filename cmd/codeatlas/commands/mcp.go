package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/mcp"
	"github.com/codeatlas-dev/codeatlas/internal/observability"
)

// NewMCPCommand creates the "mcp" command: start the Model Context
// Protocol server on stdio transport, exposing index_project,
// impact_analysis, propose_changeset, and apply_changeset as tools.
func NewMCPCommand(g Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the code-intelligence core's operations as
tools an AI agent can discover and invoke:
  - index_project: scan and index a project into a snapshot
  - impact_analysis: compute reverse-reference impact and risk
  - propose_changeset: diff a proposed multi-file edit against a snapshot
  - apply_changeset: apply a proposed changeset to the working tree`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			d, err := g.load(observability.ModeMCP)
			if err != nil {
				return err
			}
			defer d.close(cobraCmd.Context())

			red, err := observability.NewREDMetrics(d.providers.Meter)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Store:   d.store,
				Runner:  d.runner,
				Applier: d.applier,
				Logger:  d.providers.Logger,
				Metrics: red,
				Tracer:  d.providers.Tracer,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	return cmd
}
