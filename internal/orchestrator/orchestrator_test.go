package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/model"
	"github.com/codeatlas-dev/codeatlas/internal/orchestrator"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()

	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// Scenario 1: empty project with only an empty README.md.
func TestBuildEmptyProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "README.md", "")

	project, err := s.CreateProject(ctx, "demo", root, "main")
	require.NoError(t, err)

	runner := orchestrator.NewRunner(s)

	snap, err := runner.Build(ctx, project.ID, orchestrator.BuildOptions{})
	require.NoError(t, err)

	require.Equal(t, model.SnapshotReady, snap.State)
	require.Equal(t, 100, snap.Progress)
	require.Equal(t, 1, snap.FileCount)
	require.Equal(t, 0, snap.SymbolCount)

	files, err := s.ListFiles(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "README.md", files[0].Path)
	require.Equal(t, "markdown", files[0].Language)
}

// Scenario 2: a Python class with a method resolves parent_id.
func TestBuildResolvesParentSymbol(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "mod/a.py", "class C:\n    \"\"\"class doc\"\"\"\n    def m(self, x):\n        \"\"\"method doc\"\"\"\n        return x\n")

	project, err := s.CreateProject(ctx, "demo", root, "main")
	require.NoError(t, err)

	runner := orchestrator.NewRunner(s)

	snap, err := runner.Build(ctx, project.ID, orchestrator.BuildOptions{})
	require.NoError(t, err)
	require.Equal(t, model.SnapshotReady, snap.State)

	file, err := s.GetFileByPath(ctx, snap.ID, "mod/a.py")
	require.NoError(t, err)

	symbols, err := s.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, symbols, 2)

	class := symbols[0]
	require.Equal(t, "C", class.Name)
	require.Equal(t, model.SymbolClass, class.Kind)
	require.Nil(t, class.ParentID)

	method := symbols[1]
	require.Equal(t, "m", method.Name)
	require.Equal(t, model.SymbolMethod, method.Kind)
	require.NotNil(t, method.ParentID)
	require.Equal(t, class.ID, *method.ParentID)
}

func TestBuildFailsOnMissingRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "demo", "/nonexistent/path/xyz", "main")
	require.NoError(t, err)

	runner := orchestrator.NewRunner(s)

	_, err = runner.Build(ctx, project.ID, orchestrator.BuildOptions{})
	require.Error(t, err)
}

// Scenario 4: incremental no-change build carries every file forward.
func TestBuildIncrementalNoChangeCarriesForward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.py", "y = 2\n")

	project, err := s.CreateProject(ctx, "demo", root, "main")
	require.NoError(t, err)

	runner := orchestrator.NewRunner(s)

	snap1, err := runner.Build(ctx, project.ID, orchestrator.BuildOptions{})
	require.NoError(t, err)

	snap2, err := runner.Build(ctx, project.ID, orchestrator.BuildOptions{BaseSnapshotID: snap1.ID})
	require.NoError(t, err)

	require.Equal(t, snap1.FileCount, snap2.FileCount)

	files, err := s.ListFiles(ctx, snap2.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
}
