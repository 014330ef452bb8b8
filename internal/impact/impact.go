// Package impact computes the bounded-depth reverse-reference closure
// of a set of changed symbols and classifies the resulting blast radius
// (spec §4.H).
package impact

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// maxDepth is the BFS depth cap: symbols reached at distance >= 4 are
// discarded (spec §4.H).
const maxDepth = 3

// Store is the subset of internal/store.Store the impact analyzer needs.
type Store interface {
	IncomingReferences(ctx context.Context, snapshotID string, symbolIDs []string) ([]model.Reference, error)
	GetSymbols(ctx context.Context, ids []string) ([]model.Symbol, error)
}

// ImpactType classifies how a symbol was reached.
type ImpactType string

const (
	ImpactDirect      ImpactType = "direct"
	ImpactTransitive  ImpactType = "transitive"
)

// RiskLevel is the overall blast-radius classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ImpactedSymbol is one symbol reached by the reverse-reference BFS.
type ImpactedSymbol struct {
	Symbol     model.Symbol
	Distance   int
	ImpactType ImpactType
}

// ImpactedFile groups impacted symbols by the file that contains them.
type ImpactedFile struct {
	FileID  string
	Symbols []ImpactedSymbol
}

// Result is the impact analyzer's output.
type Result struct {
	ChangedSymbols   []model.Symbol
	ImpactedSymbols  []ImpactedSymbol
	ImpactedFiles    []ImpactedFile
	RiskLevel        RiskLevel
	RiskExplanation  string
}

// Analyze runs the bounded BFS over reverse references starting from
// changedSymbolIDs within snapshotID.
func Analyze(ctx context.Context, s Store, snapshotID string, changedSymbolIDs []string) (*Result, error) {
	changed, err := s.GetSymbols(ctx, changedSymbolIDs)
	if err != nil {
		return nil, fmt.Errorf("impact analysis: load changed symbols: %w", err)
	}

	visited := make(map[string]ImpactedSymbol)
	frontier := changedSymbolIDs

	for _, id := range changedSymbolIDs {
		visited[id] = ImpactedSymbol{} // mark changed ids as visited so they never appear as impacted.
	}

	distance := 0

	for len(frontier) > 0 && distance < maxDepth {
		distance++

		incoming, err := s.IncomingReferences(ctx, snapshotID, frontier)
		if err != nil {
			return nil, fmt.Errorf("impact analysis: incoming refs at depth %d: %w", distance, err)
		}

		var nextFrontierIDs []string

		seenThisLayer := make(map[string]bool)

		for _, ref := range incoming {
			fromID := ref.FromSymbolID
			if _, already := visited[fromID]; already {
				continue
			}

			if seenThisLayer[fromID] {
				continue
			}

			seenThisLayer[fromID] = true
			nextFrontierIDs = append(nextFrontierIDs, fromID)
		}

		if len(nextFrontierIDs) == 0 {
			break
		}

		symbols, err := s.GetSymbols(ctx, nextFrontierIDs)
		if err != nil {
			return nil, fmt.Errorf("impact analysis: load symbols at depth %d: %w", distance, err)
		}

		impactType := ImpactTransitive
		if distance == 1 {
			impactType = ImpactDirect
		}

		for _, sym := range symbols {
			visited[sym.ID] = ImpactedSymbol{Symbol: sym, Distance: distance, ImpactType: impactType}
		}

		frontier = nextFrontierIDs
	}

	var impacted []ImpactedSymbol

	for id, v := range visited {
		if v.Symbol.ID == "" {
			continue // was a changed-symbol marker, not a real impacted entry.
		}

		_ = id
		impacted = append(impacted, v)
	}

	sort.Slice(impacted, func(i, j int) bool {
		if impacted[i].Distance != impacted[j].Distance {
			return impacted[i].Distance < impacted[j].Distance
		}

		return impacted[i].Symbol.ID < impacted[j].Symbol.ID
	})

	byFile := make(map[string][]ImpactedSymbol)

	var fileOrder []string

	for _, is := range impacted {
		if _, seen := byFile[is.Symbol.FileID]; !seen {
			fileOrder = append(fileOrder, is.Symbol.FileID)
		}

		byFile[is.Symbol.FileID] = append(byFile[is.Symbol.FileID], is)
	}

	sort.Strings(fileOrder)

	var impactedFiles []ImpactedFile
	for _, fileID := range fileOrder {
		impactedFiles = append(impactedFiles, ImpactedFile{FileID: fileID, Symbols: byFile[fileID]})
	}

	level, explanation := classifyRisk(len(impactedFiles), len(impacted))

	return &Result{
		ChangedSymbols:  changed,
		ImpactedSymbols: impacted,
		ImpactedFiles:   impactedFiles,
		RiskLevel:       level,
		RiskExplanation: explanation,
	}, nil
}

// classifyRisk applies the spec §4.H risk table top-down; first match
// wins.
func classifyRisk(files, symbols int) (RiskLevel, string) {
	switch {
	case files == 0 && symbols == 0:
		return RiskLow, "change has no detected downstream references"
	case files <= 2 && symbols <= 5:
		return RiskLow, fmt.Sprintf("%d file(s) and %d symbol(s) affected", files, symbols)
	case files <= 5 && symbols <= 15:
		return RiskMedium, fmt.Sprintf("%d file(s) and %d symbol(s) affected", files, symbols)
	case files <= 10 && symbols <= 30:
		return RiskHigh, fmt.Sprintf("%d file(s) and %d symbol(s) affected", files, symbols)
	default:
		return RiskCritical, fmt.Sprintf("%d file(s) and %d symbol(s) affected", files, symbols)
	}
}
