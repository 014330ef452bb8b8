package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/orchestrator"
)

func TestHandleImpactAnalysis_MissingSnapshot(t *testing.T) {
	t.Parallel()

	srv, _ := newHandlerTestServer(t)

	result, _, err := srv.handleImpactAnalysis(context.Background(), &mcpsdk.CallToolRequest{}, ImpactAnalysisInput{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleImpactAnalysis_MissingTarget(t *testing.T) {
	t.Parallel()

	srv, _ := newHandlerTestServer(t)

	result, _, err := srv.handleImpactAnalysis(context.Background(), &mcpsdk.CallToolRequest{}, ImpactAnalysisInput{SnapshotID: "x"})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleImpactAnalysis_ByChangedFile(t *testing.T) {
	t.Parallel()

	srv, s := newHandlerTestServer(t)
	ctx := context.Background()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mod"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mod", "a.py"), []byte("def f():\n    pass\n"), 0o644))

	project, err := s.CreateProject(ctx, "demo", root, "main")
	require.NoError(t, err)

	snap, err := srv.deps.Runner.Build(ctx, project.ID, orchestrator.BuildOptions{})
	require.NoError(t, err)

	result, _, err := srv.handleImpactAnalysis(ctx, &mcpsdk.CallToolRequest{}, ImpactAnalysisInput{
		SnapshotID:   snap.ID,
		ChangedFiles: []string{"mod/a.py"},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
}
