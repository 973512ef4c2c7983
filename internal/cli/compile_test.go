package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overrule/internal/universe"
)

func TestCompileValidUniverse(t *testing.T) {
	tmpDir := t.TempDir()
	universePath := writeTestUniverse(t, tmpDir)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(newRootOptions("text"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{universePath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 operation(s), 4 type(s)")
	assert.Contains(t, output, "Scripted types: 2")
	assert.Contains(t, output, "Disabled types: 1")
}

func TestCompileValidUniverseJSON(t *testing.T) {
	tmpDir := t.TempDir()
	universePath := writeTestUniverse(t, tmpDir)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(newRootOptions("json"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{universePath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["universe_hash"])
}

func TestCompileWritesOutputFile(t *testing.T) {
	tmpDir := t.TempDir()
	universePath := writeTestUniverse(t, tmpDir)
	outPath := filepath.Join(tmpDir, "spec.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(newRootOptions("text"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{universePath, "--output", outPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote spec to")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var spec universe.Spec
	require.NoError(t, json.Unmarshal(data, &spec))
	assert.Len(t, spec.Operations, 2)
}

func TestCompileMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(newRootOptions("text"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/grids.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeNotFound)
}

func TestCompileInvalidUniverse(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.cue")
	bad := `universe: {
	operations: {
		add: {nin: 2, nout: 1}
	}
	types: {
		Orphan: {parent: "Missing"}
	}
}
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(newRootOptions("text"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Compilation failed")
	assert.Contains(t, buf.String(), ErrCodeInvalidType)
}
