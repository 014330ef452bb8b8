package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/impact"
	"github.com/codeatlas-dev/codeatlas/internal/observability"
)

// NewImpactCommand creates the "impact" command: compute the
// bounded-depth reverse-reference impact of a set of changed symbols
// within a snapshot (spec §4.H).
func NewImpactCommand(g Globals) *cobra.Command {
	var (
		symbolIDs []string
		format    string
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "impact <snapshot-id>",
		Short: "Compute the reverse-reference impact of changed symbols",
		Args:  cobra.ExactArgs(1),

		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if len(symbolIDs) == 0 {
				return fmt.Errorf("at least one --symbol is required")
			}

			d, err := g.load(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer d.close(cobraCmd.Context())

			result, err := impact.Analyze(cobraCmd.Context(), d.store, args[0], symbolIDs)
			if err != nil {
				return fmt.Errorf("impact analysis: %w", err)
			}

			return printImpactResult(cobraCmd, result, outputFormat(format), noColor)
		},
	}

	cmd.Flags().StringSliceVar(&symbolIDs, "symbol", nil, "id of a directly changed symbol (repeatable)")
	cmd.Flags().StringVar(&format, "format", string(formatText), "output format: text, json, or yaml")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored risk-level output")

	return cmd
}

// riskColor maps a risk level to the color its severity warrants,
// matching the pass/warn/fail palette the teacher's uast validate
// command uses for compliance output.
func riskColor(level impact.RiskLevel) *color.Color {
	switch level {
	case impact.RiskLow:
		return color.New(color.FgGreen)
	case impact.RiskMedium:
		return color.New(color.FgYellow)
	case impact.RiskHigh, impact.RiskCritical:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

func printImpactResult(cmd *cobra.Command, result *impact.Result, format outputFormat, noColor bool) error {
	handled, err := writeStructured(cmd.OutOrStdout(), format, result)
	if err != nil {
		return err
	}

	if handled {
		return nil
	}

	prevNoColor := color.NoColor
	color.NoColor = noColor || prevNoColor //nolint:reassign // intentional override of library global

	defer func() { color.NoColor = prevNoColor }() //nolint:reassign // restore library global

	riskColor(result.RiskLevel).Fprintf(cmd.OutOrStdout(), "risk: %s (%s)\n", result.RiskLevel, result.RiskExplanation)
	fmt.Fprintf(cmd.OutOrStdout(), "%d changed symbol(s), %d impacted symbol(s) across %d file(s)\n",
		len(result.ChangedSymbols), len(result.ImpactedSymbols), len(result.ImpactedFiles))

	for _, sym := range result.ImpactedSymbols {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s (distance %d, %s)\n",
			sym.Symbol.Kind, sym.Symbol.Name, sym.Distance, sym.ImpactType)
	}

	return nil
}
