package queryir

import (
	"fmt"
	"sort"
	"strings"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
)

// ValidationResult contains satisfiability analysis of a filter.
//
// Variant and disposition names come from closed vocabularies; a filter
// naming a value outside its vocabulary can never match a stored row.
// Such filters are legal to compile and run - they return no rows - so
// analysis produces warnings, not errors.
type ValidationResult struct {
	// IsSatisfiable indicates the filter can match at least some
	// conceivable stored resolution.
	IsSatisfiable bool

	// Warnings lists the conditions that can never match.
	// Empty when IsSatisfiable is true.
	Warnings []string
}

// Validate checks whether a filter can match anything.
//
// Rules:
//  1. Empty names match nothing - op, variant, disposition, and type
//     names are never stored as the empty string
//  2. Variant names must come from the closed variant vocabulary
//  3. Disposition names must come from the closed resolution vocabulary
//
// Operation and type names are universe-defined and open-ended, so only
// their empty forms warn.
//
// Validate is a pure function with no side effects.
func Validate(filter Filter) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateFilter(filter)

	return ValidationResult{
		IsSatisfiable: len(v.warnings) == 0,
		Warnings:      v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validateFilter recursively validates a filter node.
func (v *validator) validateFilter(f Filter) {
	if f == nil {
		// nil means "match everything" - satisfiable by definition
		return
	}

	switch filter := f.(type) {
	case ByOp:
		v.validateByOp(filter)
	case *ByOp:
		v.validateByOp(*filter)
	case ByVariant:
		v.validateByVariant(filter)
	case *ByVariant:
		v.validateByVariant(*filter)
	case ByDisposition:
		v.validateByDisposition(filter)
	case *ByDisposition:
		v.validateByDisposition(*filter)
	case ByType:
		v.validateByType(filter)
	case *ByType:
		v.validateByType(*filter)
	case And:
		v.validateAnd(filter)
	case *And:
		v.validateAnd(*filter)
	default:
		v.addWarning("Unknown filter type: %T - satisfiability cannot be verified", f)
	}
}

// validateByOp validates a ByOp filter.
func (v *validator) validateByOp(f ByOp) {
	if f.Op == "" {
		v.addWarning("Empty operation name matches nothing")
	}
}

// validateByVariant validates a ByVariant filter against the closed
// variant vocabulary.
func (v *validator) validateByVariant(f ByVariant) {
	if f.Variant == "" {
		v.addWarning("Empty variant name matches nothing")
		return
	}
	if _, err := dispatch.ParseVariant(f.Variant); err != nil {
		v.addWarning("Unknown variant %q matches nothing - known variants: %s",
			f.Variant, variantNames())
	}
}

// validateByDisposition validates a ByDisposition filter against the
// closed resolution-disposition vocabulary.
func (v *validator) validateByDisposition(f ByDisposition) {
	if f.Disposition == "" {
		v.addWarning("Empty disposition matches nothing")
		return
	}
	if !ir.ValidResolutionDispositions[f.Disposition] {
		v.addWarning("Unknown disposition %q matches nothing - known dispositions: %s",
			f.Disposition, dispositionNames())
	}
}

// validateByType validates a ByType filter.
func (v *validator) validateByType(f ByType) {
	if f.TypeName == "" {
		v.addWarning("Empty type name matches nothing")
	}
}

// validateAnd validates an And filter.
func (v *validator) validateAnd(and And) {
	for _, sub := range and.Filters {
		if sub == nil {
			v.addWarning("nil filter inside And - drop the entry or use an empty And")
			continue
		}
		v.validateFilter(sub)
	}
}

// variantNames renders the closed variant vocabulary in declaration order.
func variantNames() string {
	variants := dispatch.Variants()
	names := make([]string, len(variants))
	for i, variant := range variants {
		names[i] = variant.String()
	}
	return strings.Join(names, ", ")
}

// dispositionNames renders the closed disposition vocabulary, sorted for
// deterministic messages.
func dispositionNames() string {
	names := make([]string, 0, len(ir.ValidResolutionDispositions))
	for name := range ir.ValidResolutionDispositions {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
