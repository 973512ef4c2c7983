package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_SatisfiableFilter(t *testing.T) {
	filter := And{
		Filters: []Filter{
			ByOp{Op: "add"},
			ByVariant{Variant: "reduce"},
			ByDisposition{Disposition: "handled"},
			ByType{TypeName: "MaskedGrid"},
		},
	}

	result := Validate(filter)

	assert.True(t, result.IsSatisfiable, "known vocabulary should be satisfiable")
	assert.Empty(t, result.Warnings)
}

func TestValidate_SatisfiableFilterWithPointers(t *testing.T) {
	filter := &And{
		Filters: []Filter{
			&ByOp{Op: "add"},
			&ByVariant{Variant: "call"},
			&ByDisposition{Disposition: "default"},
			&ByType{TypeName: "Grid"},
		},
	}

	result := Validate(filter)

	assert.True(t, result.IsSatisfiable, "pointer forms should validate the same")
	assert.Empty(t, result.Warnings)
}

func TestValidate_NilFilter(t *testing.T) {
	// nil means "match everything" - trivially satisfiable
	result := Validate(nil)

	assert.True(t, result.IsSatisfiable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_EmptyAnd(t *testing.T) {
	// Empty conjunction matches everything (vacuous truth)
	result := Validate(And{Filters: []Filter{}})

	assert.True(t, result.IsSatisfiable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_UnknownVariant(t *testing.T) {
	result := Validate(ByVariant{Variant: "sideways"})

	assert.False(t, result.IsSatisfiable, "unknown variant can never match")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"sideways"`)
	assert.Contains(t, result.Warnings[0], "reduceat", "warning should list the vocabulary")
}

func TestValidate_UnknownDisposition(t *testing.T) {
	result := Validate(ByDisposition{Disposition: "maybe"})

	assert.False(t, result.IsSatisfiable, "unknown disposition can never match")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"maybe"`)
	assert.Contains(t, result.Warnings[0], "unhandled", "warning should list the vocabulary")
}

func TestValidate_AttemptDispositionRejected(t *testing.T) {
	// "accepted" and "declined" classify attempts, not resolutions
	result := Validate(ByDisposition{Disposition: "accepted"})

	assert.False(t, result.IsSatisfiable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"accepted"`)
}

func TestValidate_EmptyNames(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
	}{
		{"empty op", ByOp{Op: ""}},
		{"empty variant", ByVariant{Variant: ""}},
		{"empty disposition", ByDisposition{Disposition: ""}},
		{"empty type name", ByType{TypeName: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.filter)

			assert.False(t, result.IsSatisfiable, "empty names match nothing")
			require.Len(t, result.Warnings, 1)
			assert.Contains(t, result.Warnings[0], "matches nothing")
		})
	}
}

func TestValidate_WarningsAccumulate(t *testing.T) {
	filter := And{
		Filters: []Filter{
			ByVariant{Variant: "sideways"},
			ByDisposition{Disposition: "maybe"},
			ByOp{Op: "add"}, // fine
		},
	}

	result := Validate(filter)

	assert.False(t, result.IsSatisfiable)
	assert.Len(t, result.Warnings, 2, "one warning per unmatchable condition")
}

func TestValidate_NilInsideAnd(t *testing.T) {
	filter := And{
		Filters: []Filter{
			ByOp{Op: "add"},
			nil,
		},
	}

	result := Validate(filter)

	assert.False(t, result.IsSatisfiable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "nil filter inside And")
}

func TestValidate_NestedAnd(t *testing.T) {
	filter := And{
		Filters: []Filter{
			ByOp{Op: "add"},
			And{
				Filters: []Filter{
					ByVariant{Variant: "bogus"},
				},
			},
		},
	}

	result := Validate(filter)

	assert.False(t, result.IsSatisfiable, "nested warnings must surface")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"bogus"`)
}

func TestValidate_AllKnownVariants(t *testing.T) {
	for _, variant := range []string{"call", "outer", "reduce", "accumulate", "reduceat", "at"} {
		t.Run(variant, func(t *testing.T) {
			result := Validate(ByVariant{Variant: variant})
			assert.True(t, result.IsSatisfiable, "variant %q should be known", variant)
		})
	}
}

func TestValidate_AllKnownDispositions(t *testing.T) {
	for _, disp := range []string{"default", "handled", "unsupported", "unhandled", "invalid", "failed"} {
		t.Run(disp, func(t *testing.T) {
			result := Validate(ByDisposition{Disposition: disp})
			assert.True(t, result.IsSatisfiable, "disposition %q should be known", disp)
		})
	}
}

func TestValidate_PureFunction(t *testing.T) {
	filter := ByVariant{Variant: "bogus"}

	first := Validate(filter)
	second := Validate(filter)

	assert.Equal(t, first, second, "validation must not carry state between calls")
}
