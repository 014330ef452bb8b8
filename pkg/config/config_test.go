package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/pkg/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "1MB", cfg.Scanner.MaxFileSize)
	assert.Equal(t, 50, cfg.Indexing.CommitBatchSize)
	assert.Equal(t, 3, cfg.Impact.MaxDepth)
	assert.Equal(t, "codeatlas.db", cfg.Store.DatabasePath)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
scanner:
  max_file_size: "2MB"
  include_content: false

indexing:
  commit_batch_size: 100

impact:
  max_depth: 5

store:
  database_path: "/tmp/test-codeatlas.db"
`

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, "2MB", cfg.Scanner.MaxFileSize)
	assert.False(t, cfg.Scanner.IncludeContent)
	assert.Equal(t, 100, cfg.Indexing.CommitBatchSize)
	assert.Equal(t, 5, cfg.Impact.MaxDepth)
	assert.Equal(t, "/tmp/test-codeatlas.db", cfg.Store.DatabasePath)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("CODEATLAS_IMPACT_MAX_DEPTH", "7")
	t.Setenv("CODEATLAS_STORE_DATABASE_PATH", "/tmp/env-codeatlas.db")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Impact.MaxDepth)
	assert.Equal(t, "/tmp/env-codeatlas.db", cfg.Store.DatabasePath)
}

func TestValidateConfigRejectsInvalidMaxFileSize(t *testing.T) {
	t.Parallel()

	configContent := "scanner:\n  max_file_size: \"not-a-size\"\n"

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "bad-size-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	_, loadErr := config.LoadConfig(tmpFile.Name())
	require.ErrorIs(t, loadErr, config.ErrInvalidMaxFileSize)
}

func TestValidateConfigRejectsInvalidMCPTransport(t *testing.T) {
	t.Parallel()

	configContent := "mcp:\n  transport: \"carrier-pigeon\"\n"

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "bad-transport-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	_, loadErr := config.LoadConfig(tmpFile.Name())
	require.ErrorIs(t, loadErr, config.ErrInvalidMCPTransport)
}

func TestMCPTimeoutParsing(t *testing.T) {
	t.Parallel()

	configContent := "mcp:\n  timeout: \"45s\"\n"

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "timeout-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, 45*time.Second, cfg.MCP.Timeout)
}
