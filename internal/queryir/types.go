package queryir

// Filter represents an abstract condition over recorded resolutions.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Filter types:
//   - ByOp: match one operation name
//   - ByVariant: match one invocation variant
//   - ByDisposition: match one terminal disposition
//   - ByType: match resolutions whose attempt trail invoked a type
//   - And: all filters must match
//
// A nil Filter means "match everything".
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// ByOp matches resolutions dispatched for one operation.
//
// Semantics:
//
//	op = <name>
//
// Example:
//
//	ByOp{Op: "add"}
//
// Translates to SQL:
//
//	op = ?
//
// Operation names are universe-defined, not a closed set: a name no
// universe ever used is syntactically fine and simply matches nothing.
// Validate warns only on the empty string.
type ByOp struct {
	Op string // Operation name (e.g. "add")
}

func (ByOp) filterNode() {}

// ByVariant matches resolutions for one invocation variant.
//
// Semantics:
//
//	variant = <name>
//
// Example:
//
//	ByVariant{Variant: "reduce"}
//
// Translates to SQL:
//
//	variant = ?
//
// Variant names form a closed vocabulary (call, outer, reduce,
// accumulate, reduceat, at). A name outside it can never match a stored
// row; Validate reports it as unsatisfiable.
type ByVariant struct {
	Variant string // Canonical variant name (e.g. "reduce")
}

func (ByVariant) filterNode() {}

// ByDisposition matches resolutions with one terminal disposition.
//
// Semantics:
//
//	disposition = <name>
//
// Example:
//
//	ByDisposition{Disposition: "handled"}
//
// Translates to SQL:
//
//	disposition = ?
//
// Dispositions form a closed vocabulary (default, handled, unsupported,
// unhandled, invalid, failed). A name outside it can never match a
// stored row; Validate reports it as unsatisfiable.
type ByDisposition struct {
	Disposition string // Terminal disposition (e.g. "handled")
}

func (ByDisposition) filterNode() {}

// ByType matches resolutions whose attempt trail invoked the named type.
//
// Semantics: the resolution has at least one attempt whose type_name
// equals TypeName. Candidates that were collected but never invoked do
// not match - the filter asks "which resolutions actually ran this
// type's handler", not "which calls carried an operand of this type".
//
// Example:
//
//	ByType{TypeName: "MaskedGrid"}
//
// Translates to SQL:
//
//	EXISTS (SELECT 1 FROM attempts
//	        WHERE attempts.resolution_id = resolutions.id
//	          AND attempts.type_name = ?)
//
// The attempts table indexes type_name, so the probe stays cheap on
// large logs.
type ByType struct {
	TypeName string // Runtime type name (e.g. "MaskedGrid")
}

func (ByType) filterNode() {}

// And represents a conjunction of filters (all must match).
//
// Semantics:
//
//	<filter1> AND <filter2> AND ... AND <filterN>
//
// Example:
//
//	And{Filters: []Filter{
//	  ByOp{Op: "add"},
//	  ByDisposition{Disposition: "handled"},
//	}}
//
// Translates to SQL:
//
//	op = ? AND disposition = ?
//
// An empty Filters slice means "match everything" (vacuous truth).
// Nested And nodes are allowed and flatten naturally - conjunction is
// associative, so backends need no grouping.
type And struct {
	Filters []Filter // All must match (empty = match everything)
}

func (And) filterNode() {}
