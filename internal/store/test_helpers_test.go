package store

import (
	"path/filepath"
	"testing"

	"overrule/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResolution creates a test resolution with minimal required fields.
func createTestResolution(id, callToken, op string, seq int64) ir.Resolution {
	return ir.Resolution{
		ID:          id,
		CallToken:   callToken,
		Op:          op,
		Variant:     "call",
		InputTypes:  []string{"Grid", "Grid"},
		Disposition: "handled",
		Result:      "5",
		Seq:         seq,
		EngineVer:   "0.1.0",
		IRVer:       "1",
	}
}

// createTestAttempt creates a test attempt with minimal required fields.
func createTestAttempt(resolutionID string, ordinal int64, typeName, disposition string, seq int64) ir.Attempt {
	return ir.Attempt{
		ResolutionID: resolutionID,
		Ordinal:      ordinal,
		TypeName:     typeName,
		Disposition:  disposition,
		Seq:          seq,
	}
}
