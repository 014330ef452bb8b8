package ignore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/ignore"
)

func TestMatcher_AlwaysIgnoresFixedDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	m, err := ignore.New(dir)
	require.NoError(t, err)

	assert.True(t, m.Matches("node_modules/pkg/index.js"))
	assert.True(t, m.Matches(".git/HEAD"))
	assert.True(t, m.Matches("__pycache__/mod.pyc"))
	assert.True(t, m.Matches("a/b/.venv/lib/site-packages/x.py"))
	assert.False(t, m.Matches("src/main.go"))
}

func TestMatcher_UsesGitignoreContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild_artifacts/\n!important.log\n"), 0o644)
	require.NoError(t, err)

	m, err := ignore.New(dir)
	require.NoError(t, err)

	assert.True(t, m.Matches("debug.log"))
	assert.True(t, m.Matches("build_artifacts/out.bin"))
	assert.False(t, m.Matches("important.log"))
	assert.False(t, m.Matches("src/app.py"))
}

func TestMatcher_AlwaysIgnoreWinsOverNegation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("!node_modules/\n"), 0o644)
	require.NoError(t, err)

	m, err := ignore.New(dir)
	require.NoError(t, err)

	assert.True(t, m.Matches("node_modules/pkg/index.js"))
}

func TestMatcher_NoGitignoreIsNotAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	m, err := ignore.New(dir)
	require.NoError(t, err)
	assert.False(t, m.Matches("src/main.go"))
}

func TestMatcher_MatchesDirPrunesSubtree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	m, err := ignore.New(dir)
	require.NoError(t, err)

	assert.True(t, m.MatchesDir("dist"))
	assert.False(t, m.MatchesDir("src"))
}
