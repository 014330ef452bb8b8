package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/cmd/codeatlas/commands"
)

func testGlobals() commands.Globals {
	cfgPath := ""
	verbose := false
	quiet := false

	return commands.Globals{ConfigPath: &cfgPath, Verbose: &verbose, Quiet: &quiet}
}

func TestNewIndexCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewIndexCommand(testGlobals())
	require.NotNil(t, cmd)
	assert.Equal(t, "index <project-id-or-path>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("name"))
	assert.NotNil(t, cmd.Flags().Lookup("base-snapshot"))
}

func TestNewImpactCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewImpactCommand(testGlobals())
	require.NotNil(t, cmd)
	assert.NotNil(t, cmd.Flags().Lookup("symbol"))
}

func TestNewImpactCommand_RequiresSymbol(t *testing.T) {
	t.Parallel()

	cmd := commands.NewImpactCommand(testGlobals())
	cmd.SetArgs([]string{"snap-1"})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestNewChangesetCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := commands.NewChangesetCommand(testGlobals())
	require.NotNil(t, cmd)

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "propose")
	assert.Contains(t, names, "apply")
	assert.Contains(t, names, "rollback")
	assert.Contains(t, names, "commit")
}

func TestNewMCPCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewMCPCommand(testGlobals())
	require.NotNil(t, cmd)
	assert.Equal(t, "mcp", cmd.Use)
}
