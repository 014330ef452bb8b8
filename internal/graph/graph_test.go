package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/model"
)

type fakeStore struct {
	files   []model.File
	symbols []model.Symbol
	refs    []model.Reference
}

func (f *fakeStore) IncomingReferences(ctx context.Context, snapshotID string, symbolIDs []string) ([]model.Reference, error) {
	want := make(map[string]bool, len(symbolIDs))
	for _, id := range symbolIDs {
		want[id] = true
	}

	var out []model.Reference

	for _, r := range f.refs {
		if r.ToSymbolID != nil && want[*r.ToSymbolID] {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeStore) OutgoingReferences(ctx context.Context, snapshotID, symbolID string) ([]model.Reference, error) {
	var out []model.Reference

	for _, r := range f.refs {
		if r.FromSymbolID == symbolID {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeStore) ReferencesBySnapshot(ctx context.Context, snapshotID string) ([]model.Reference, error) {
	return f.refs, nil
}

func (f *fakeStore) ListSymbolsBySnapshot(ctx context.Context, snapshotID string) ([]model.Symbol, error) {
	return f.symbols, nil
}

func (f *fakeStore) ListFiles(ctx context.Context, snapshotID string) ([]model.File, error) {
	return f.files, nil
}

func strPtr(s string) *string { return &s }

func TestIncomingOutgoing(t *testing.T) {
	s1, s2 := "sym-1", "sym-2"

	store := &fakeStore{
		refs: []model.Reference{
			{ID: "r1", FromSymbolID: s2, ToSymbolID: strPtr(s1), Kind: model.RefCall},
		},
	}

	incoming, err := graph.Incoming(context.Background(), store, "snap", s1)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, s2, incoming[0].FromSymbolID)

	outgoing, err := graph.Outgoing(context.Background(), store, "snap", s2)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	require.Equal(t, s1, *outgoing[0].ToSymbolID)
}

func TestBuildDependencyGraph(t *testing.T) {
	store := &fakeStore{
		files: []model.File{
			{ID: "file-1", Path: "a.py"},
		},
		symbols: []model.Symbol{
			{ID: "sym-class", FileID: "file-1", Name: "C", Kind: model.SymbolClass},
			{ID: "sym-method", FileID: "file-1", Name: "m", Kind: model.SymbolMethod, ParentID: strPtr("sym-class")},
		},
		refs: []model.Reference{
			{ID: "r1", FromSymbolID: "sym-method", ToSymbolID: strPtr("sym-class"), Kind: model.RefUsage},
		},
	}

	g, err := graph.BuildDependencyGraph(context.Background(), store, "snap", "")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3) // file + 2 symbols

	var sawContains, sawExtends, sawUsage bool

	for _, e := range g.Edges {
		switch {
		case e.Kind == "contains" && e.FromID == "file-1":
			sawContains = true
		case e.Kind == "extends" && e.FromID == "sym-class":
			sawExtends = true
		case e.Kind == string(model.RefUsage):
			sawUsage = true
		}
	}

	require.True(t, sawContains)
	require.True(t, sawExtends)
	require.True(t, sawUsage)
}
