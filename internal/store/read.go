package store

import (
	"context"
	"database/sql"
	"fmt"

	"overrule/internal/ir"
)

const resolutionColumns = `id, call_token, op, variant, input_types, output_types, where_type,
       candidates, params, disposition, result, error, seq, universe_hash,
       engine_version, ir_version`

// ReadResolution retrieves a single resolution by its content-addressed ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadResolution(ctx context.Context, id string) (ir.Resolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+resolutionColumns+`
		FROM resolutions
		WHERE id = ?
	`, id)

	return scanResolutionRow(row)
}

// ReadResolutionByToken retrieves a single resolution by its call token.
// Tokens are unique, so at most one row matches.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadResolutionByToken(ctx context.Context, callToken string) (ir.Resolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+resolutionColumns+`
		FROM resolutions
		WHERE call_token = ?
	`, callToken)

	return scanResolutionRow(row)
}

// ReadAttempts returns the attempt trail of a resolution in invocation
// order (ORDER BY ordinal ASC).
//
// Returns an empty slice (not nil) if the resolution has no attempts.
func (s *Store) ReadAttempts(ctx context.Context, resolutionID string) ([]ir.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resolution_id, ordinal, type_name, disposition, error, seq
		FROM attempts
		WHERE resolution_id = ?
		ORDER BY ordinal ASC
	`, resolutionID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []ir.Attempt
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	// Return empty slice instead of nil
	if attempts == nil {
		attempts = []ir.Attempt{}
	}

	return attempts, nil
}

// ReadTrail retrieves a resolution together with its attempt trail.
// Returns sql.ErrNoRows if the resolution does not exist.
func (s *Store) ReadTrail(ctx context.Context, resolutionID string) (ir.Resolution, []ir.Attempt, error) {
	res, err := s.ReadResolution(ctx, resolutionID)
	if err != nil {
		return ir.Resolution{}, nil, err
	}

	attempts, err := s.ReadAttempts(ctx, resolutionID)
	if err != nil {
		return ir.Resolution{}, nil, err
	}

	return res, attempts, nil
}

// ReadAllResolutions returns all resolutions with deterministic ordering.
// Used for replay and trace listing. Results ordered by seq ASC, id ASC.
func (s *Store) ReadAllResolutions(ctx context.Context) ([]ir.Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resolutionColumns+`
		FROM resolutions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []ir.Resolution
	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}

	if resolutions == nil {
		resolutions = []ir.Resolution{}
	}

	return resolutions, nil
}

// ReadAllAttempts returns all attempts with deterministic ordering.
// Used for replay scenarios. Results ordered by seq ASC, then by
// (resolution_id, ordinal) for ties.
func (s *Store) ReadAllAttempts(ctx context.Context) ([]ir.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resolution_id, ordinal, type_name, disposition, error, seq
		FROM attempts
		ORDER BY seq ASC, resolution_id COLLATE BINARY ASC, ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all attempts: %w", err)
	}
	defer rows.Close()

	var attempts []ir.Attempt
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	if attempts == nil {
		attempts = []ir.Attempt{}
	}

	return attempts, nil
}

// ReadResolutionsForUniverse returns all resolutions recorded against a
// specific universe hash, with deterministic ordering (seq ASC, id ASC).
func (s *Store) ReadResolutionsForUniverse(ctx context.Context, universeHash string) ([]ir.Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resolutionColumns+`
		FROM resolutions
		WHERE universe_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, universeHash)
	if err != nil {
		return nil, fmt.Errorf("query resolutions for universe: %w", err)
	}
	defer rows.Close()

	var resolutions []ir.Resolution
	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}

	if resolutions == nil {
		resolutions = []ir.Resolution{}
	}

	return resolutions, nil
}

// scanResolution scans a row into a Resolution struct.
func scanResolution(rows *sql.Rows) (ir.Resolution, error) {
	var res ir.Resolution
	var inputsJSON, outputsJSON, candidatesJSON, paramsJSON string

	if err := rows.Scan(
		&res.ID, &res.CallToken, &res.Op, &res.Variant,
		&inputsJSON, &outputsJSON, &res.WhereType, &candidatesJSON, &paramsJSON,
		&res.Disposition, &res.Result, &res.Error, &res.Seq,
		&res.UniverseHash, &res.EngineVer, &res.IRVer,
	); err != nil {
		return ir.Resolution{}, fmt.Errorf("scan resolution: %w", err)
	}

	return decodeResolutionColumns(res, inputsJSON, outputsJSON, candidatesJSON, paramsJSON)
}

// scanResolutionRow scans a single row into a Resolution struct.
// Passes sql.ErrNoRows through unchanged so callers can detect misses.
func scanResolutionRow(row *sql.Row) (ir.Resolution, error) {
	var res ir.Resolution
	var inputsJSON, outputsJSON, candidatesJSON, paramsJSON string

	if err := row.Scan(
		&res.ID, &res.CallToken, &res.Op, &res.Variant,
		&inputsJSON, &outputsJSON, &res.WhereType, &candidatesJSON, &paramsJSON,
		&res.Disposition, &res.Result, &res.Error, &res.Seq,
		&res.UniverseHash, &res.EngineVer, &res.IRVer,
	); err != nil {
		return ir.Resolution{}, err
	}

	return decodeResolutionColumns(res, inputsJSON, outputsJSON, candidatesJSON, paramsJSON)
}

// decodeResolutionColumns parses the canonical-JSON TEXT columns into
// their record fields.
func decodeResolutionColumns(res ir.Resolution, inputsJSON, outputsJSON, candidatesJSON, paramsJSON string) (ir.Resolution, error) {
	inputs, err := unmarshalTypeNames(inputsJSON)
	if err != nil {
		return ir.Resolution{}, err
	}
	res.InputTypes = inputs

	outputs, err := unmarshalTypeNames(outputsJSON)
	if err != nil {
		return ir.Resolution{}, err
	}
	res.OutputTypes = outputs

	candidates, err := unmarshalTypeNames(candidatesJSON)
	if err != nil {
		return ir.Resolution{}, err
	}
	res.Candidates = candidates

	params, err := unmarshalParams(paramsJSON)
	if err != nil {
		return ir.Resolution{}, err
	}
	res.Params = params

	return res, nil
}

// scanAttempt scans a row into an Attempt struct.
func scanAttempt(rows *sql.Rows) (ir.Attempt, error) {
	var att ir.Attempt
	if err := rows.Scan(
		&att.ResolutionID, &att.Ordinal, &att.TypeName, &att.Disposition, &att.Error, &att.Seq,
	); err != nil {
		return ir.Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	return att, nil
}
