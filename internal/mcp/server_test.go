package mcp_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/changeset"
	"github.com/codeatlas-dev/codeatlas/internal/mcp"
	"github.com/codeatlas-dev/codeatlas/internal/orchestrator"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

func newTestServer(t *testing.T) (*mcp.Server, *store.Store) {
	t.Helper()

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	deps := mcp.ServerDeps{
		Store:   s,
		Runner:  orchestrator.NewRunner(s),
		Applier: changeset.New(s),
	}

	return mcp.NewServer(deps), s
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()

	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestNewServer_ReturnsNonNil(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	require.NotNil(t, srv)
}

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	tools := srv.ListToolNames()
	assert.Len(t, tools, 4)
	assert.Contains(t, tools, "index_project")
	assert.Contains(t, tools, "impact_analysis")
	assert.Contains(t, tools, "propose_changeset")
	assert.Contains(t, tools, "apply_changeset")
}

func TestServer_Run_CancelledContext(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Run(ctx)
	require.Error(t, err)
}
