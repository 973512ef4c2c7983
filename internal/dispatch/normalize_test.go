package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizeInto(t *testing.T, variant Variant, outputs []Operand, extras []any, kwNames []string) *Params {
	t.Helper()
	kwargs := NewParams()
	err := normalizeParams(makeAddOp(), variant, outputs, extras, kwNames, kwargs)
	require.NoError(t, err)
	return kwargs
}

func TestNormalize_KeywordSuffixPreservesOrder(t *testing.T) {
	extras := []any{true, 2}
	kwargs := normalizeInto(t, VariantAt, nil, extras, []string{"keepdims", "axis"})

	assert.Equal(t, []string{"keepdims", "axis"}, kwargs.Keys())
	v, _ := kwargs.Get("keepdims")
	assert.Equal(t, true, v)
	v, _ = kwargs.Get("axis")
	assert.Equal(t, 2, v)
}

func TestNormalize_OutForcedToOutputSequence(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	out1 := makePlainOperand(gridT)
	out2 := makePlainOperand(gridT)

	// A keyword-passed out is replaced in place, keeping its position.
	extras := []any{"user-supplied", 1}
	kwargs := normalizeInto(t, VariantCall, []Operand{out1, out2}, extras, []string{"out", "axis"})

	assert.Equal(t, []string{"out", "axis"}, kwargs.Keys())
	v, ok := kwargs.Get("out")
	require.True(t, ok)
	outs, ok := v.([]Operand)
	require.True(t, ok, "out must be the output sequence")
	require.Len(t, outs, 2)
	assert.Same(t, out1, outs[0])
	assert.Same(t, out2, outs[1])
}

func TestNormalize_OutAppendedWhenPositionalOnly(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	out := makePlainOperand(gridT)

	kwargs := normalizeInto(t, VariantCall, []Operand{out}, []any{7}, []string{"axis"})

	assert.Equal(t, []string{"axis", "out"}, kwargs.Keys())
}

func TestNormalize_OutRemovedWhenNoOutputs(t *testing.T) {
	kwargs := normalizeInto(t, VariantCall, nil, []any{nil}, []string{"out"})

	assert.False(t, kwargs.Has("out"))
	assert.Zero(t, kwargs.Len())
}

func TestNormalize_SignatureRenameMovesToEnd(t *testing.T) {
	for _, variant := range []Variant{VariantCall, VariantOuter} {
		t.Run(variant.String(), func(t *testing.T) {
			extras := []any{"ff->f", 0}
			kwargs := normalizeInto(t, variant, nil, extras, []string{"sig", "axis"})

			assert.Equal(t, []string{"axis", "signature"}, kwargs.Keys(),
				"sig must be renamed to signature and moved to the end")
			v, _ := kwargs.Get("signature")
			assert.Equal(t, "ff->f", v)
		})
	}
}

func TestNormalize_SignatureKeywordUntouched(t *testing.T) {
	extras := []any{"ff->f"}
	kwargs := normalizeInto(t, VariantCall, nil, extras, []string{"signature"})

	assert.Equal(t, []string{"signature"}, kwargs.Keys())
}

func TestNormalize_SigNotRenamedForReduceFamily(t *testing.T) {
	for _, variant := range []Variant{VariantReduce, VariantAccumulate, VariantReduceAt, VariantAt} {
		t.Run(variant.String(), func(t *testing.T) {
			extras := []any{"ff->f"}
			kwargs := normalizeInto(t, variant, nil, extras, []string{"sig"})

			assert.True(t, kwargs.Has("sig"))
			assert.False(t, kwargs.Has("signature"))
		})
	}
}

func TestNormalize_ReducePositionalSlots(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)
	out := makePlainOperand(gridT)
	mask := makePlainOperand(gridT)

	// reduce(array, axis, dtype, out, keepdims, initial, where)
	extras := []any{arr, 1, "f8", out, true, 0, mask}
	kwargs := normalizeInto(t, VariantReduce, []Operand{out}, extras, nil)

	assert.Equal(t, []string{"out", "axis", "dtype", "keepdims", "initial", "where"}, kwargs.Keys())

	v, _ := kwargs.Get("axis")
	assert.Equal(t, 1, v)
	v, _ = kwargs.Get("dtype")
	assert.Equal(t, "f8", v)
	v, _ = kwargs.Get("keepdims")
	assert.Equal(t, true, v)
	v, _ = kwargs.Get("initial")
	assert.Equal(t, 0, v)
	v, _ = kwargs.Get("where")
	assert.Same(t, mask, v)

	// Slots 0 and 3 are reserved: the reduced input and the positional
	// output travel in the operand sequences, never in kwargs. The exact
	// key list above proves neither leaked in.
}

func TestNormalize_ReduceInitialNoValueSkipped(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)

	extras := []any{arr, 0, nil, nil, false, NoValue, true}
	kwargs := normalizeInto(t, VariantReduce, nil, extras, nil)

	assert.False(t, kwargs.Has("initial"), "an absent optional must not leak the sentinel")
	assert.True(t, kwargs.Has("where"), "slots after the sentinel are still copied")
	assert.Equal(t, []string{"axis", "dtype", "keepdims", "where"}, kwargs.Keys())
}

func TestNormalize_ReduceShortPositionalPrefix(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)

	// Only array and axis passed positionally.
	extras := []any{arr, 3}
	kwargs := normalizeInto(t, VariantReduce, nil, extras, nil)

	assert.Equal(t, []string{"axis"}, kwargs.Keys())
}

func TestNormalize_AccumulateSlots(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)
	out := makePlainOperand(gridT)

	// accumulate(array, axis, dtype, out)
	extras := []any{arr, 0, "i4", out}
	kwargs := normalizeInto(t, VariantAccumulate, []Operand{out}, extras, nil)

	assert.Equal(t, []string{"out", "axis", "dtype"}, kwargs.Keys())
}

func TestNormalize_ReduceAtSlots(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)
	indices := makePlainOperand(gridT)
	out := makePlainOperand(gridT)

	// reduceat(array, indices, axis, dtype, out)
	extras := []any{arr, indices, 1, "u1", out}
	kwargs := normalizeInto(t, VariantReduceAt, []Operand{out}, extras, nil)

	assert.Equal(t, []string{"out", "axis", "dtype"}, kwargs.Keys())

	v, _ := kwargs.Get("axis")
	assert.Equal(t, 1, v)
}

func TestNormalize_AtCopiesNothing(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)
	idx := makePlainOperand(gridT)

	extras := []any{arr, idx, 5}
	kwargs := normalizeInto(t, VariantAt, nil, extras, nil)

	assert.Zero(t, kwargs.Len(), "at-variant positional extras stay positional")
}

func TestNormalize_PositionalsBeyondSchemaIgnored(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	arr := makePlainOperand(gridT)

	extras := []any{arr, 0, "f8", nil, true, 1, true, "stray"}
	kwargs := normalizeInto(t, VariantReduce, nil, extras, nil)

	assert.Equal(t, []string{"axis", "dtype", "keepdims", "initial", "where"}, kwargs.Keys())
}

func TestNormalize_UnknownVariant(t *testing.T) {
	kwargs := NewParams()
	err := normalizeParams(makeAddOp(), Variant(0), nil, nil, nil, kwargs)
	require.Error(t, err)
	assert.True(t, IsUnknownVariant(err))
	assert.Contains(t, err.Error(), "internal dispatch error")
}

func TestNormalize_KwNamesLongerThanExtras(t *testing.T) {
	kwargs := NewParams()
	err := normalizeParams(makeAddOp(), VariantCall, nil, []any{1}, []string{"a", "b"}, kwargs)
	require.Error(t, err)
	assert.True(t, IsInvalidOperandAccess(err))
}
