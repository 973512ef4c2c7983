package store

import (
	"context"
	"fmt"
	"strings"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
)

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock from the correct position when a
// database is reopened.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64

	// Check resolutions
	var resSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM resolutions
	`).Scan(&resSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from resolutions: %w", err)
	}
	maxSeq = resSeq

	// Check attempts (attempt seqs are drawn after their resolution's,
	// so the maximum usually lives here)
	var attSeq int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM attempts
	`).Scan(&attSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from attempts: %w", err)
	}
	if attSeq > maxSeq {
		maxSeq = attSeq
	}

	return maxSeq, nil
}

// ListCallTokens returns all call tokens in the database, ordered by the
// seq of the resolution they belong to. Used by trace and replay
// commands to enumerate recorded calls.
func (s *Store) ListCallTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_token FROM resolutions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list call tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan call token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call tokens: %w", err)
	}

	if tokens == nil {
		tokens = []string{}
	}

	return tokens, nil
}

// CountByDisposition returns how many resolutions ended in each
// disposition. Dispositions with no resolutions are absent from the map.
func (s *Store) CountByDisposition(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT disposition, COUNT(*) FROM resolutions
		GROUP BY disposition
		ORDER BY disposition
	`)
	if err != nil {
		return nil, fmt.Errorf("count by disposition: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var disposition string
		var count int64
		if err := rows.Scan(&disposition, &count); err != nil {
			return nil, fmt.Errorf("scan disposition count: %w", err)
		}
		counts[disposition] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disposition counts: %w", err)
	}

	return counts, nil
}

// Divergence describes one field where a replayed outcome differs from
// the stored record.
type Divergence struct {
	Field    string
	Stored   string
	Replayed string
}

func (d Divergence) String() string {
	return fmt.Sprintf("%s: stored %q, replayed %q", d.Field, d.Stored, d.Replayed)
}

// CompareTrail compares a stored resolution and its attempt trail
// against a freshly produced trace of the same call. An empty result
// means the replay reproduced the stored outcome exactly.
//
// Seq numbers, call tokens, and IDs are identity, not outcome, and are
// not compared.
func CompareTrail(res ir.Resolution, attempts []ir.Attempt, tr dispatch.Trace) []Divergence {
	var divs []Divergence

	check := func(field, stored, replayed string) {
		if stored != replayed {
			divs = append(divs, Divergence{Field: field, Stored: stored, Replayed: replayed})
		}
	}

	check("op", res.Op, tr.Op)
	check("variant", res.Variant, tr.Variant)
	check("input_types", strings.Join(res.InputTypes, ", "), strings.Join(tr.InputTypes, ", "))
	check("output_types", strings.Join(res.OutputTypes, ", "), strings.Join(tr.OutputTypes, ", "))
	check("where_type", res.WhereType, tr.WhereType)
	check("candidates", strings.Join(res.Candidates, ", "), strings.Join(tr.Candidates, ", "))
	check("params", renderStoredParams(res.Params), renderTraceParams(tr.Params))
	check("disposition", res.Disposition, string(tr.Disposition))
	check("result", res.Result, tr.Result)
	check("error", res.Error, tr.Err)

	if len(attempts) != len(tr.Attempts) {
		check("attempts", fmt.Sprintf("%d", len(attempts)), fmt.Sprintf("%d", len(tr.Attempts)))
		return divs
	}

	for i, att := range attempts {
		prefix := fmt.Sprintf("attempts[%d].", i)
		check(prefix+"type_name", att.TypeName, tr.Attempts[i].TypeName)
		check(prefix+"disposition", att.Disposition, string(tr.Attempts[i].Disposition))
		check(prefix+"error", att.Error, tr.Attempts[i].Err)
	}

	return divs
}

// renderStoredParams renders a stored params array as "key=value" pairs.
// Entries that are not {key, value} objects render as their canonical
// JSON so malformed rows still diff readably.
func renderStoredParams(params ir.Array) string {
	parts := make([]string, 0, len(params))
	for _, elem := range params {
		obj, ok := elem.(ir.Object)
		if ok {
			k, kOK := obj["key"].(ir.String)
			v, vOK := obj["value"].(ir.String)
			if kOK && vOK {
				parts = append(parts, string(k)+"="+string(v))
				continue
			}
		}
		data, err := ir.MarshalCanonical(elem)
		if err != nil {
			parts = append(parts, fmt.Sprintf("<unrenderable: %v>", err))
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, ", ")
}

// renderTraceParams renders trace parameters as "key=value" pairs.
func renderTraceParams(entries []dispatch.ParamEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Key+"="+e.Value)
	}
	return strings.Join(parts, ", ")
}
