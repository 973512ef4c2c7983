package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"overrule/internal/store"
)

// testUniverseCUE is the universe the CLI tests dispatch against.
const testUniverseCUE = `universe: {
	operations: {
		add: {nin: 2, nout: 1}
		multiply: {nin: 2, nout: 1}
	}
	types: {
		Grid: {}
		MaskedGrid: {
			parent:   "Grid"
			override: "scripted"
			behaviors: {
				add: {kind: "return", value: "masked-sum"}
			}
		}
		FrozenGrid: {
			parent:   "Grid"
			override: "scripted"
			behaviors: {
				add: {kind: "decline"}
			}
		}
		SealedGrid: {
			parent:   "Grid"
			override: "disabled"
		}
	}
}
`

// writeTestUniverse writes the shared universe fixture into dir.
func writeTestUniverse(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "grids.cue")
	require.NoError(t, os.WriteFile(path, []byte(testUniverseCUE), 0o644))
	return path
}

// writeTestScenario writes a passing scenario next to the universe fixture.
func writeTestScenario(t *testing.T, dir, name string) string {
	t.Helper()
	scenario := `name: ` + name + `
description: "MaskedGrid overrides add"
universe: grids.cue
calls:
  - op: add
    inputs: [Grid, MaskedGrid]
    expect:
      disposition: handled
      result: masked-sum
assertions:
  - type: stored_disposition
    call: 0
    disposition: handled
    result: masked-sum
`
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))
	return path
}

// newRootOptions builds the shared flag set a test command needs.
func newRootOptions(format string) *RootOptions {
	return &RootOptions{Format: format}
}

// openEmptyDatabase creates a schema-only trace database at path.
func openEmptyDatabase(t *testing.T, path string) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}
