package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "snc", cmd.Use)
	assert.Contains(t, cmd.Long, "dependency order")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "plan", "parse", "deps", "validate", "status", "rm", "watch", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)
	nameFlag := compileCmd.Flags().Lookup("name")
	require.NotNil(t, nameFlag)
	assert.Equal(t, "n", nameFlag.Shorthand)

	depsCmd, _, err := cmd.Find([]string{"deps"})
	require.NoError(t, err)
	renderFlag := depsCmd.Flags().Lookup("render")
	require.NotNil(t, renderFlag)
	assert.Equal(t, "text", renderFlag.DefValue)

	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)
	require.NotNil(t, testCmd.Flags().Lookup("update"))
	require.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, tempDB(t), "--format", "yaml", "parse", "testdata/story.md")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestBadConfig(t *testing.T) {
	_, err := execute(t, tempDB(t), "--config", "testdata/missing.yaml", "compile", "testdata/story.md")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
