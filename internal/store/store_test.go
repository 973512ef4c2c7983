package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	// Reopen database
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	// Verify we can query it
	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM resolutions").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{"resolutions", "attempts"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// First close should succeed
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Error("DB() returned nil")
	}

	// Verify it's usable
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)

	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_ResolutionsTable(t *testing.T) {
	s := createTestStore(t)

	// Verify table exists with expected columns
	columns := getTableColumns(t, s.db, "resolutions")

	expected := []string{
		"id", "call_token", "op", "variant", "input_types", "output_types",
		"where_type", "candidates", "params", "disposition", "result",
		"error", "seq", "universe_hash", "engine_version", "ir_version",
	}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("resolutions table missing column %q", col)
		}
	}
}

func TestSchema_AttemptsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "attempts")

	expected := []string{
		"resolution_id", "ordinal", "type_name", "disposition", "error", "seq",
	}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("attempts table missing column %q", col)
		}
	}
}

// Index tests

func TestSchema_ResolutionsIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "resolutions")

	expected := []string{
		"idx_resolutions_op",
		"idx_resolutions_disposition",
		"idx_resolutions_seq",
	}

	for _, idx := range expected {
		if !contains(indexes, idx) {
			t.Errorf("resolutions table missing index %q", idx)
		}
	}
}

func TestSchema_AttemptsIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "attempts")

	expected := []string{
		"idx_attempts_type_name",
		"idx_attempts_seq",
	}

	for _, idx := range expected {
		if !contains(indexes, idx) {
			t.Errorf("attempts table missing index %q", idx)
		}
	}
}

// Constraint tests

func TestConstraint_ResolutionUniqueCallToken(t *testing.T) {
	s := createTestStore(t)

	// Insert first resolution
	_, err := s.db.Exec(`
		INSERT INTO resolutions (id, call_token, op, variant, input_types, disposition, seq, engine_version, ir_version)
		VALUES ('res1', 'token1', 'add', 'call', '["Grid"]', 'handled', 1, '0.1.0', '1')
	`)
	if err != nil {
		t.Fatalf("failed to insert resolution: %v", err)
	}

	// Try to insert a second resolution claiming the same token
	_, err = s.db.Exec(`
		INSERT INTO resolutions (id, call_token, op, variant, input_types, disposition, seq, engine_version, ir_version)
		VALUES ('res2', 'token1', 'add', 'call', '["Grid"]', 'handled', 2, '0.1.0', '1')
	`)
	if err == nil {
		t.Error("expected UNIQUE constraint violation on call_token, got nil")
	}
}

func TestConstraint_AttemptsUniqueOrdinal(t *testing.T) {
	s := createTestStore(t)

	// Insert a resolution first (for FK)
	_, err := s.db.Exec(`
		INSERT INTO resolutions (id, call_token, op, variant, input_types, disposition, seq, engine_version, ir_version)
		VALUES ('res1', 'token1', 'add', 'call', '["Grid"]', 'unhandled', 1, '0.1.0', '1')
	`)
	if err != nil {
		t.Fatalf("failed to insert resolution: %v", err)
	}

	// Insert first attempt
	_, err = s.db.Exec(`
		INSERT INTO attempts (resolution_id, ordinal, type_name, disposition, seq)
		VALUES ('res1', 0, 'MaskedGrid', 'declined', 2)
	`)
	if err != nil {
		t.Fatalf("failed to insert first attempt: %v", err)
	}

	// Try to insert duplicate (same resolution_id, ordinal)
	_, err = s.db.Exec(`
		INSERT INTO attempts (resolution_id, ordinal, type_name, disposition, seq)
		VALUES ('res1', 0, 'FrozenGrid', 'declined', 3)
	`)
	if err == nil {
		t.Error("expected PRIMARY KEY constraint violation, got nil")
	}
}

func TestConstraint_AttemptsAllowDifferentOrdinals(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO resolutions (id, call_token, op, variant, input_types, disposition, seq, engine_version, ir_version)
		VALUES ('res1', 'token1', 'add', 'call', '["Grid"]', 'unhandled', 1, '0.1.0', '1')
	`)
	if err != nil {
		t.Fatalf("failed to insert resolution: %v", err)
	}

	// Insert attempts with different ordinals - should succeed
	for i := 0; i < 3; i++ {
		_, err = s.db.Exec(`
			INSERT INTO attempts (resolution_id, ordinal, type_name, disposition, seq)
			VALUES ('res1', ?, 'MaskedGrid', 'declined', ?)
		`, i, i+2)
		if err != nil {
			t.Errorf("failed to insert attempt with ordinal %d: %v", i, err)
		}
	}
}

func TestConstraint_ForeignKeyAttemptToResolution(t *testing.T) {
	s := createTestStore(t)

	// Try to insert attempt with non-existent resolution_id
	_, err := s.db.Exec(`
		INSERT INTO attempts (resolution_id, ordinal, type_name, disposition, seq)
		VALUES ('nonexistent', 0, 'MaskedGrid', 'declined', 1)
	`)
	if err == nil {
		t.Error("expected foreign key constraint violation, got nil")
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	// Verify user_version is set to currentSchemaVersion
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_V1UniqueIndexExists(t *testing.T) {
	s := createTestStore(t)

	// Check that the unique index on resolutions.call_token exists
	indexes := getTableIndexes(t, s.db, "resolutions")

	// Either the migration index or SQLite's auto-generated unique index should exist
	hasUniqueIndex := contains(indexes, "idx_resolutions_token_unique") ||
		contains(indexes, "sqlite_autoindex_resolutions_2") // SQLite creates this for UNIQUE columns
	if !hasUniqueIndex {
		t.Errorf("resolutions table missing unique index on call_token, indexes: %v", indexes)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open and close multiple times - migrations should be idempotent
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}

		// Verify version is correct each time
		var version int
		err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
		if err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}

		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}

		s.Close()
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	// Simulate a pre-migration database (version 0)
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database manually without migration
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Apply schema but NOT migrations (simulates pre-migration state)
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Set version to 0 explicitly (pre-migration)
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	// Now open through our normal path - should trigger migration
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify version was upgraded
	var version int
	err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}

	// Verify a unique index on call_token exists (from the schema
	// constraint or the migration)
	indexes := getTableIndexes(t, s.db, "resolutions")
	hasUnique := false
	for _, idx := range indexes {
		if idx == "idx_resolutions_token_unique" || idx == "sqlite_autoindex_resolutions_2" {
			hasUnique = true
			break
		}
	}
	if !hasUnique {
		t.Errorf("expected unique index on resolutions.call_token after migration, got indexes: %v", indexes)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
