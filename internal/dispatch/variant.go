package dispatch

import "fmt"

// Variant selects the calling convention of an operation invocation.
// Each variant carries its own rule for folding positionally-passed
// supplemental arguments into the normalized parameter set.
type Variant int

const (
	// VariantCall is the standard elementwise invocation.
	VariantCall Variant = iota + 1

	// VariantOuter applies the operation over all input pairs.
	VariantOuter

	// VariantReduce folds the operation along an axis.
	VariantReduce

	// VariantAccumulate keeps intermediate reduction results.
	VariantAccumulate

	// VariantReduceAt reduces over indexed slices.
	VariantReduceAt

	// VariantAt operates in place at indexed positions.
	VariantAt
)

var variantNames = map[Variant]string{
	VariantCall:       "call",
	VariantOuter:      "outer",
	VariantReduce:     "reduce",
	VariantAccumulate: "accumulate",
	VariantReduceAt:   "reduceat",
	VariantAt:         "at",
}

// String returns the variant's canonical lower-case name.
func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant maps a canonical variant name back to its value.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

// Variants returns all variants in declaration order.
func Variants() []Variant {
	return []Variant{
		VariantCall, VariantOuter, VariantReduce,
		VariantAccumulate, VariantReduceAt, VariantAt,
	}
}

// variantSchema describes how one variant folds its positional extras
// into the normalized parameter set. Adding a variant means adding one
// entry to variantSchemas; the normalizer has no per-variant branches.
type variantSchema struct {
	// slots names the leading positional extras in calling-convention
	// order. An empty name marks a slot whose value already travels in
	// the input or output sequences and must not be copied.
	slots []string

	// sentinelSlot is the index of a slot whose value is dropped when it
	// equals NoValue, or -1 when no slot behaves that way.
	sentinelSlot int

	// renameSignature applies the sig -> signature rename rule.
	renameSignature bool
}

var variantSchemas = map[Variant]variantSchema{
	VariantCall:  {sentinelSlot: -1, renameSignature: true},
	VariantOuter: {sentinelSlot: -1, renameSignature: true},
	VariantReduce: {
		// Slot 0 is the reduced input, slot 3 the positional output.
		slots:        []string{"", "axis", "dtype", "", "keepdims", "initial", "where"},
		sentinelSlot: 5,
	},
	VariantAccumulate: {
		slots:        []string{"", "axis", "dtype", ""},
		sentinelSlot: -1,
	},
	VariantReduceAt: {
		// Slots 0 and 1 are the input and the index operand.
		slots:        []string{"", "", "axis", "dtype", ""},
		sentinelSlot: -1,
	},
	VariantAt: {sentinelSlot: -1},
}
