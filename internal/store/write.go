package store

import (
	"context"
	"fmt"

	"overrule/internal/ir"
)

// WriteResolution inserts a resolution record into the store.
// Duplicate writes are silently ignored for idempotency: the bare
// ON CONFLICT DO NOTHING covers both a duplicate ID (same resolution
// written twice) and a duplicate call token (a second resolution
// claiming an already-used token). Other constraint violations (e.g.,
// NOT NULL) will still return errors.
//
// The resolution's type-name lists and params are serialized to
// canonical JSON per RFC 8785 for deterministic replay.
func (s *Store) WriteResolution(ctx context.Context, res ir.Resolution) error {
	inputsJSON, err := marshalTypeNames(res.InputTypes)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}

	outputsJSON, err := marshalTypeNames(res.OutputTypes)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}

	candidatesJSON, err := marshalTypeNames(res.Candidates)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}

	paramsJSON, err := marshalParams(res.Params)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resolutions
		(id, call_token, op, variant, input_types, output_types, where_type, candidates, params,
		 disposition, result, error, seq, universe_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		res.ID,
		res.CallToken,
		res.Op,
		res.Variant,
		inputsJSON,
		outputsJSON,
		res.WhereType,
		candidatesJSON,
		paramsJSON,
		res.Disposition,
		res.Result,
		res.Error,
		res.Seq,
		res.UniverseHash,
		res.EngineVer,
		res.IRVer,
	)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}

	return nil
}

// WriteAttempt inserts an attempt record into the store.
// Uses ON CONFLICT(resolution_id, ordinal) DO NOTHING for idempotency -
// duplicate (resolution, ordinal) pairs are silently ignored.
//
// Note: The resolution referenced by ResolutionID must exist (foreign
// key constraint).
func (s *Store) WriteAttempt(ctx context.Context, att ir.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts
		(resolution_id, ordinal, type_name, disposition, error, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(resolution_id, ordinal) DO NOTHING
	`,
		att.ResolutionID,
		att.Ordinal,
		att.TypeName,
		att.Disposition,
		att.Error,
		att.Seq,
	)
	if err != nil {
		return fmt.Errorf("write attempt: %w", err)
	}

	return nil
}

// HasResolution checks if a resolution with the given ID already exists.
// Used for idempotency checks before re-recording a replayed call.
func (s *Store) HasResolution(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM resolutions WHERE id = ?
	`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check resolution: %w", err)
	}
	return count > 0, nil
}

// WriteResolutionAtomic atomically writes a resolution and its attempt
// trail in a single transaction, so a crash never leaves a resolution
// with a partial trail.
//
// Returns:
//   - inserted: true if this was a new resolution, false if it already existed
//   - error: any error that occurred
//
// If inserted=false, the attempts are NOT written (the resolution was
// already recorded with its trail). This is the crash-safe variant of
// the non-atomic sequence: HasResolution → WriteResolution → WriteAttempt*.
func (s *Store) WriteResolutionAtomic(
	ctx context.Context,
	res ir.Resolution,
	attempts []ir.Attempt,
) (inserted bool, err error) {
	inputsJSON, err := marshalTypeNames(res.InputTypes)
	if err != nil {
		return false, fmt.Errorf("atomic resolution: %w", err)
	}

	outputsJSON, err := marshalTypeNames(res.OutputTypes)
	if err != nil {
		return false, fmt.Errorf("atomic resolution: %w", err)
	}

	candidatesJSON, err := marshalTypeNames(res.Candidates)
	if err != nil {
		return false, fmt.Errorf("atomic resolution: %w", err)
	}

	paramsJSON, err := marshalParams(res.Params)
	if err != nil {
		return false, fmt.Errorf("atomic resolution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("atomic resolution: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Step 1: Try to insert the resolution (claims the ID and token
	// atomically via the unique constraints)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO resolutions
		(id, call_token, op, variant, input_types, output_types, where_type, candidates, params,
		 disposition, result, error, seq, universe_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		res.ID,
		res.CallToken,
		res.Op,
		res.Variant,
		inputsJSON,
		outputsJSON,
		res.WhereType,
		candidatesJSON,
		paramsJSON,
		res.Disposition,
		res.Result,
		res.Error,
		res.Seq,
		res.UniverseHash,
		res.EngineVer,
		res.IRVer,
	)
	if err != nil {
		return false, fmt.Errorf("atomic resolution: insert resolution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("atomic resolution: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Conflict - resolution already recorded with its trail
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("atomic resolution: commit (existing): %w", err)
		}
		return false, nil
	}

	// Step 2: Write the attempt trail
	for _, att := range attempts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attempts
			(resolution_id, ordinal, type_name, disposition, error, seq)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(resolution_id, ordinal) DO NOTHING
		`,
			att.ResolutionID,
			att.Ordinal,
			att.TypeName,
			att.Disposition,
			att.Error,
			att.Seq,
		)
		if err != nil {
			return false, fmt.Errorf("atomic resolution: write attempt %d: %w", att.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("atomic resolution: commit: %w", err)
	}

	return true, nil
}
