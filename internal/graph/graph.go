// Package graph provides derived views over a snapshot's reference
// table (spec §4.G) and the supplemented dependency-graph export.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// Store is the subset of internal/store.Store the graph views need.
type Store interface {
	IncomingReferences(ctx context.Context, snapshotID string, symbolIDs []string) ([]model.Reference, error)
	OutgoingReferences(ctx context.Context, snapshotID, symbolID string) ([]model.Reference, error)
	ReferencesBySnapshot(ctx context.Context, snapshotID string) ([]model.Reference, error)
	ListSymbolsBySnapshot(ctx context.Context, snapshotID string) ([]model.Symbol, error)
	ListFiles(ctx context.Context, snapshotID string) ([]model.File, error)
}

// Incoming returns every reference targeting symbolID within a
// snapshot: the directed "what points at this" view (spec §4.G).
func Incoming(ctx context.Context, s Store, snapshotID, symbolID string) ([]model.Reference, error) {
	return s.IncomingReferences(ctx, snapshotID, []string{symbolID})
}

// Outgoing returns every reference originating from symbolID.
func Outgoing(ctx context.Context, s Store, snapshotID, symbolID string) ([]model.Reference, error) {
	return s.OutgoingReferences(ctx, snapshotID, symbolID)
}

// Node is one node of the exported dependency graph: either a file or
// a symbol, distinguished by Kind.
type Node struct {
	ID   string
	Kind string // "file" or the model.SymbolKind string value
	Name string
}

// Edge is one edge of the exported dependency graph.
type Edge struct {
	FromID string
	ToID   string
	Kind   string // "contains", "extends" (parent-child), or a model.ReferenceKind value
}

// DependencyGraph is the supplemented graph-export view: every file
// and symbol in a snapshot as nodes, file-contains-symbol and
// parent-child edges, plus the snapshot's reference edges. Grounded on
// original_source's dependency-graph export feature, which this spec
// distillation dropped.
type DependencyGraph struct {
	Nodes []Node
	Edges []Edge
}

// BuildDependencyGraph assembles the full dependency graph for a
// snapshot, optionally restricted to a single file path.
func BuildDependencyGraph(ctx context.Context, s Store, snapshotID string, filePath string) (*DependencyGraph, error) {
	files, err := s.ListFiles(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("dependency graph: list files: %w", err)
	}

	symbols, err := s.ListSymbolsBySnapshot(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("dependency graph: list symbols: %w", err)
	}

	refs, err := s.ReferencesBySnapshot(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("dependency graph: list references: %w", err)
	}

	fileByID := make(map[string]model.File, len(files))
	for _, f := range files {
		fileByID[f.ID] = f
	}

	var wantedFileID string

	if filePath != "" {
		for _, f := range files {
			if f.Path == filePath {
				wantedFileID = f.ID
				break
			}
		}
	}

	g := &DependencyGraph{}

	includedFile := func(id string) bool {
		return filePath == "" || id == wantedFileID
	}

	for _, f := range files {
		if !includedFile(f.ID) {
			continue
		}

		g.Nodes = append(g.Nodes, Node{ID: f.ID, Kind: "file", Name: f.Path})
	}

	symbolFile := make(map[string]string, len(symbols))

	for _, sym := range symbols {
		symbolFile[sym.ID] = sym.FileID

		if !includedFile(sym.FileID) {
			continue
		}

		g.Nodes = append(g.Nodes, Node{ID: sym.ID, Kind: string(sym.Kind), Name: sym.Name})
		g.Edges = append(g.Edges, Edge{FromID: sym.FileID, ToID: sym.ID, Kind: "contains"})

		if sym.ParentID != nil {
			g.Edges = append(g.Edges, Edge{FromID: *sym.ParentID, ToID: sym.ID, Kind: "extends"})
		}
	}

	for _, ref := range refs {
		if !includedFile(symbolFile[ref.FromSymbolID]) {
			continue
		}

		toID := ""
		if ref.ToSymbolID != nil {
			toID = *ref.ToSymbolID
		} else if ref.ToFileID != nil {
			toID = *ref.ToFileID
		}

		if toID == "" {
			continue
		}

		g.Edges = append(g.Edges, Edge{FromID: ref.FromSymbolID, ToID: toID, Kind: string(ref.Kind)})
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].FromID != g.Edges[j].FromID {
			return g.Edges[i].FromID < g.Edges[j].FromID
		}

		return g.Edges[i].ToID < g.Edges[j].ToID
	})

	return g, nil
}
