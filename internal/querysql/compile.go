// Package querysql compiles trace filters to parameterized SQL for the
// SQLite resolutions log.
//
// Every compiled statement ends with a deterministic ORDER BY (seq, then
// ID with COLLATE BINARY) so repeated queries over the same log return
// rows in the same order. All filter values travel as ? parameters and
// are never interpolated into the statement text.
package querysql

import (
	"fmt"
	"strings"

	"overrule/internal/queryir"
)

// resolutionColumns is the SELECT list for trace queries, in schema
// order. It must stay aligned with the resolutions table in
// internal/store/schema.sql.
const resolutionColumns = `id, call_token, op, variant, input_types, output_types, where_type,
       candidates, params, disposition, result, error, seq, universe_hash,
       engine_version, ir_version`

// stableOrderKey is the mandatory ordering suffix. COLLATE BINARY keeps
// text ordering identical across SQLite versions.
const stableOrderKey = " ORDER BY seq ASC, id COLLATE BINARY ASC"

// SQLCompiler compiles filter IR to parameterized SQL.
//
// Every statement includes ORDER BY for deterministic results, and all
// values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a filter to a complete SELECT over the resolutions
// log. A nil filter selects every resolution.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(f queryir.Filter) (string, []any, error) {
	var whereClause string
	var params []any
	if f != nil {
		filterSQL, filterParams, err := c.compileFilter(f)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM resolutions%s%s",
		resolutionColumns,
		whereClause,
		stableOrderKey)

	return sql, params, nil
}

// compileFilter compiles a filter node to a WHERE clause fragment.
// Returns (sql, params, error).
func (c *SQLCompiler) compileFilter(f queryir.Filter) (string, []any, error) {
	if f == nil {
		return "1 = 1", nil, nil // Always true
	}

	switch filter := f.(type) {
	case queryir.ByOp:
		return "op = ?", []any{filter.Op}, nil
	case *queryir.ByOp:
		return "op = ?", []any{filter.Op}, nil
	case queryir.ByVariant:
		return "variant = ?", []any{filter.Variant}, nil
	case *queryir.ByVariant:
		return "variant = ?", []any{filter.Variant}, nil
	case queryir.ByDisposition:
		return "disposition = ?", []any{filter.Disposition}, nil
	case *queryir.ByDisposition:
		return "disposition = ?", []any{filter.Disposition}, nil
	case queryir.ByType:
		return c.compileByType(filter)
	case *queryir.ByType:
		return c.compileByType(*filter)
	case queryir.And:
		return c.compileAnd(filter)
	case *queryir.And:
		return c.compileAnd(*filter)
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

// compileByType compiles a ByType filter to an EXISTS probe against the
// attempt trail. type_name is indexed, so the probe does not scan.
func (c *SQLCompiler) compileByType(f queryir.ByType) (string, []any, error) {
	sql := "EXISTS (SELECT 1 FROM attempts" +
		" WHERE attempts.resolution_id = resolutions.id" +
		" AND attempts.type_name = ?)"
	return sql, []any{f.TypeName}, nil
}

// compileAnd compiles a conjunction. Conjunction is associative, so
// fragments join with AND and need no grouping.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Filters) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any

	for _, sub := range and.Filters {
		sql, params, err := c.compileFilter(sub)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}
