package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"assemble", "network", "regions", "cache", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "market-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAssembleCommand_Flags(t *testing.T) {
	flag := assembleCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "assemble command should have --out flag")

	full := assembleCmd.Flags().Lookup("full")
	require.NotNil(t, full, "assemble command should have --full flag")
	assert.Equal(t, "false", full.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCacheCommand_HasSubcommands(t *testing.T) {
	cmds := cacheCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"stats", "purge", "clear"} {
		assert.True(t, names[name], "expected cache subcommand %q not found", name)
	}
}

func TestRegionsCommand_HasResolve(t *testing.T) {
	cmds := regionsCmd.Commands()
	found := false
	for _, c := range cmds {
		if c.Name() == "resolve" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWriteJSONOutput_Stdout(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, writeJSONOutput(cmd, "", map[string]int{"count": 3}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded["count"])
}
