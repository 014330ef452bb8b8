package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas-dev/codeatlas/internal/impact"
)

// ImpactedSymbolResult is one entry of ImpactAnalysisResult.ImpactedSymbols.
type ImpactedSymbolResult struct {
	SymbolID   string `json:"symbol_id"`
	Name       string `json:"name"`
	FileID     string `json:"file_id"`
	Distance   int    `json:"distance"`
	ImpactType string `json:"impact_type"`
}

// ImpactedFileResult is one entry of ImpactAnalysisResult.ImpactedFiles.
type ImpactedFileResult struct {
	FileID  string                 `json:"file_id"`
	Symbols []ImpactedSymbolResult `json:"symbols"`
}

// ImpactAnalysisResult is the structured output of impact_analysis.
type ImpactAnalysisResult struct {
	ChangedSymbolIDs []string              `json:"changed_symbol_ids"`
	ImpactedSymbols  []ImpactedSymbolResult `json:"impacted_symbols"`
	ImpactedFiles    []ImpactedFileResult   `json:"impacted_files"`
	RiskLevel        string                 `json:"risk_level"`
	RiskExplanation  string                 `json:"risk_explanation"`
}

func (s *Server) handleImpactAnalysis(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ImpactAnalysisInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.SnapshotID == "" {
		return errorResult(ErrEmptySnapshotID)
	}

	symbolIDs := input.SymbolIDs

	if len(symbolIDs) == 0 {
		if len(input.ChangedFiles) == 0 {
			return errorResult(ErrEmptyChangeTarget)
		}

		resolved, err := s.resolveChangedFileSymbols(ctx, input.SnapshotID, input.ChangedFiles)
		if err != nil {
			return errorResult(err)
		}

		symbolIDs = resolved
	}

	result, err := impact.Analyze(ctx, s.deps.Store, input.SnapshotID, symbolIDs)
	if err != nil {
		return errorResult(fmt.Errorf("impact analysis: %w", err))
	}

	return jsonResult(toImpactAnalysisResult(symbolIDs, result))
}

func (s *Server) resolveChangedFileSymbols(ctx context.Context, snapshotID string, paths []string) ([]string, error) {
	var symbolIDs []string

	for _, path := range paths {
		file, err := s.deps.Store.GetFileByPath(ctx, snapshotID, path)
		if err != nil {
			return nil, fmt.Errorf("resolve changed file %s: %w", path, err)
		}

		symbols, err := s.deps.Store.ListSymbolsByFile(ctx, file.ID)
		if err != nil {
			return nil, fmt.Errorf("list symbols for %s: %w", path, err)
		}

		for _, sym := range symbols {
			symbolIDs = append(symbolIDs, sym.ID)
		}
	}

	return symbolIDs, nil
}

func toImpactAnalysisResult(changedSymbolIDs []string, r *impact.Result) ImpactAnalysisResult {
	out := ImpactAnalysisResult{
		ChangedSymbolIDs: changedSymbolIDs,
		RiskLevel:        string(r.RiskLevel),
		RiskExplanation:  r.RiskExplanation,
	}

	for _, is := range r.ImpactedSymbols {
		out.ImpactedSymbols = append(out.ImpactedSymbols, ImpactedSymbolResult{
			SymbolID:   is.Symbol.ID,
			Name:       is.Symbol.Name,
			FileID:     is.Symbol.FileID,
			Distance:   is.Distance,
			ImpactType: string(is.ImpactType),
		})
	}

	for _, ifile := range r.ImpactedFiles {
		entry := ImpactedFileResult{FileID: ifile.FileID}

		for _, is := range ifile.Symbols {
			entry.Symbols = append(entry.Symbols, ImpactedSymbolResult{
				SymbolID:   is.Symbol.ID,
				Name:       is.Symbol.Name,
				FileID:     is.Symbol.FileID,
				Distance:   is.Distance,
				ImpactType: string(is.ImpactType),
			})
		}

		out.ImpactedFiles = append(out.ImpactedFiles, entry)
	}

	return out
}
