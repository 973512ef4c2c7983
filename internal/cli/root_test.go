package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"compile", "validate", "call", "test", "trace", "replay", "repl"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCommandRejectsInvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	universePath := writeTestUniverse(t, tmpDir)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "compile", universePath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommandAcceptsValidFormats(t *testing.T) {
	tmpDir := t.TempDir()
	universePath := writeTestUniverse(t, tmpDir)

	for _, format := range ValidFormats {
		buf := &bytes.Buffer{}
		cmd := NewRootCommand()
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs([]string{"--format", format, "compile", universePath})

		err := cmd.Execute()
		assert.NoError(t, err, "format %q", format)
	}
}
