package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	output, err := execute(t, "--help")

	// Then: it should show usage information
	require.NoError(t, err)
	assert.Contains(t, output, "waykb", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command

	// When: executing with --version
	output, err := execute(t, "--version")

	// Then: it should show the version line
	require.NoError(t, err)
	assert.Contains(t, output, "waykb version", "Version output should mention program name")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// When: checking available commands
	var commandNames []string
	for _, subcmd := range cmd.Commands() {
		commandNames = append(commandNames, subcmd.Name())
	}

	// Then: all five subcommands should exist
	for _, want := range []string{"build", "manifest", "verify", "search", "version"} {
		assert.Contains(t, commandNames, want, "Should have %s subcommand", want)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	// Given: a root command

	// When: executing an unknown subcommand
	_, err := execute(t, "frobnicate")

	// Then: it should fail
	assert.Error(t, err)
}

func TestBuildCmd_ShowsHelp(t *testing.T) {
	// When: executing build --help
	output, err := execute(t, "build", "--help")

	// Then: it should show the build flags
	require.NoError(t, err)
	assert.Contains(t, output, "--sources-dir", "Build help should list --sources-dir")
	assert.Contains(t, output, "--output-dir", "Build help should list --output-dir")
}

func TestVerifyCmd_ShowsHelp(t *testing.T) {
	// When: executing verify --help
	output, err := execute(t, "verify", "--help")

	// Then: it should show verify usage
	require.NoError(t, err)
	assert.Contains(t, output, "verify", "Verify help should mention verify")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	// When: executing search without a query
	_, err := execute(t, "search")

	// Then: it should fail on the missing argument
	assert.Error(t, err)
}
