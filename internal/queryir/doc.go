// Package queryir provides an abstract filter intermediate representation
// (IR) for querying recorded resolutions.
//
// QueryIR is the abstraction boundary between filter construction (CLI
// flags, future query surfaces) and the storage backend. Callers build
// filters from typed nodes; backends compile them to their native query
// language.
//
// ARCHITECTURE:
//
// The filter IR sits between the trace CLI and the SQL backend:
//
//	[trace flags] → [Filter IR] → [SQL backend]
//
// Every query reads the same append-only resolutions log, so the IR has
// no table or projection nodes - a filter describes WHICH resolutions to
// return, and the backend owns the column list and the mandatory
// deterministic ordering (seq, then ID).
//
// FILTER NODES:
//
//   - ByOp - resolutions dispatched for one operation
//   - ByVariant - resolutions for one invocation variant
//   - ByDisposition - resolutions with one terminal disposition
//   - ByType - resolutions whose attempt trail invoked a given type
//   - And - conjunction (all must match)
//
// The IR EXCLUDES:
//   - OR and negation (run separate queries and merge)
//   - Range and substring matching (exact equality only)
//   - Aggregations (CountByDisposition on the store covers the one need)
//
// SEALED INTERFACE:
//
// Filter is a sealed interface using the marker method pattern. Only
// types in this package can implement it.
//
// This enables:
//   - Exhaustive type switches in backends
//   - Compile-time safety against external extensions
//   - Clear contract for backend implementers
//
// Example:
//
//	switch f := filter.(type) {
//	case ByOp:
//	    // Handle operation filter
//	case And:
//	    // Handle conjunction
//	default:
//	    // Impossible - compiler knows all Filter types
//	}
//
// SATISFIABILITY:
//
// Variants and dispositions come from closed vocabularies. A filter
// naming a value outside its vocabulary is legal - it compiles and runs -
// but can never match a stored row. Validate reports such filters as
// unsatisfiable with per-condition warnings, so the CLI can tell a user
// "no results because nothing matches" apart from "no results because
// this filter cannot match".
package queryir
