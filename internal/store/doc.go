// Package store provides SQLite-backed durable storage for resolution
// traces.
//
// The store implements an append-only log with:
//   - Resolutions: one record per override resolution
//   - Attempts: the per-handler trail inside each resolution
//
// Writes are idempotent: resolution IDs are content-addressed, so the
// same resolution written twice is a silent no-op (ON CONFLICT DO
// NOTHING). All ordering uses seq INTEGER (logical clock), never
// timestamps, and every read query carries an explicit ORDER BY so
// results are identical across replays.
//
// Recorder adapts the store to dispatch.Recorder: it stamps each trace
// with a sequence number from a logical clock and a call token from an
// ir.TokenGenerator, computes the content-addressed resolution ID, and
// writes the resolution and its attempt trail in one transaction.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Canonical JSON column values use RFC 8785 form via internal/ir, so a
// stored record's text is byte-identical across runs.
package store
