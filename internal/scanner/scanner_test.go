package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/scanner"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()

	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScanEmptyProjectReadme(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "")

	files, err := scanner.Scan(root, scanner.Options{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "README.md", files[0].RelPath)
	require.Equal(t, "markdown", files[0].Language)
	require.Equal(t, int64(0), files[0].SizeBytes)
	require.Equal(t, 1, files[0].LineCount)
	require.False(t, files[0].IsBinary)
}

func TestScanPrunesIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "print(1)\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	files, err := scanner.Scan(root, scanner.Options{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "src/a.py", files[0].RelPath)
}

func TestScanRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\n!keep.log\n")
	writeFile(t, root, "app.log", "x")
	writeFile(t, root, "keep.log", "x")
	writeFile(t, root, "main.go", "package main\n")

	files, err := scanner.Scan(root, scanner.Options{})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.RelPath)
	}

	require.Contains(t, paths, "keep.log")
	require.Contains(t, paths, "main.go")
	require.NotContains(t, paths, "app.log")
}

func TestScanBinaryDetectionByNulByte(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "blob.dat")
	require.NoError(t, os.WriteFile(full, []byte("abc\x00def"), 0o644))

	files, err := scanner.Scan(root, scanner.Options{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.True(t, files[0].IsBinary)
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", string(make([]byte, 100)))

	files, err := scanner.Scan(root, scanner.Options{MaxFileSize: 10})
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestScanIsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/z.py", "z\n")
	writeFile(t, root, "a/y.py", "y\n")
	writeFile(t, root, "a.py", "a\n")

	first, err := scanner.Scan(root, scanner.Options{IncludeContent: true})
	require.NoError(t, err)

	second, err := scanner.Scan(root, scanner.Options{IncludeContent: true})
	require.NoError(t, err)

	require.Equal(t, first, second)

	var paths []string
	for _, f := range first {
		paths = append(paths, f.RelPath)
	}

	require.Equal(t, []string{"a.py", "a/y.py", "b/z.py"}, paths)
}
