package store

import (
	"context"
	"fmt"

	"overrule/internal/ir"
	"overrule/internal/queryir"
	"overrule/internal/querysql"
)

// FindResolutions runs a trace filter against the resolutions log.
// A nil filter returns everything. Results come back in seq order with
// the ID tiebreak, same as ReadAllResolutions.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) FindResolutions(ctx context.Context, f queryir.Filter) ([]ir.Resolution, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(f)
	if err != nil {
		return nil, fmt.Errorf("compile trace filter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
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
