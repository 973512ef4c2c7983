package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectOverrides_FirstOperandPerTypeWins(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	j := &journal{}

	first := makeHandlerOperand(gridT, declineHandler(j, "first"))
	second := makeHandlerOperand(gridT, declineHandler(j, "second"))

	cands, err := collectOverrides(makeAddOp(), VariantCall, []Operand{first, second}, nil, nil)
	require.NoError(t, err)

	require.Len(t, cands, 1, "same runtime type contributes one candidate")
	assert.Same(t, first, cands[0].operand, "the first operand of a type wins")
}

func TestCollectOverrides_ScanOrderInputsOutputsMask(t *testing.T) {
	aT := makeTestType("A", nil)
	bT := makeTestType("B", nil)
	cT := makeTestType("C", nil)
	j := &journal{}

	in := makeHandlerOperand(aT, declineHandler(j, "a"))
	out := makeHandlerOperand(bT, declineHandler(j, "b"))
	mask := makeHandlerOperand(cT, declineHandler(j, "c"))

	cands, err := collectOverrides(makeAddOp(), VariantCall, []Operand{in}, []Operand{out}, mask)
	require.NoError(t, err)

	require.Len(t, cands, 3)
	assert.Equal(t, "A", cands[0].rtype.Name())
	assert.Equal(t, "B", cands[1].rtype.Name())
	assert.Equal(t, "C", cands[2].rtype.Name())
}

func TestCollectOverrides_DuplicateTypeSkippedBeforeCapabilityQuery(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	j := &journal{}

	// The second Grid operand is disabled, but its type already
	// contributed a candidate: it must be skipped, not queried.
	first := makeHandlerOperand(gridT, declineHandler(j, "first"))
	duplicate := makeDisabledOperand(gridT)

	cands, err := collectOverrides(makeAddOp(), VariantCall, []Operand{first, duplicate}, nil, nil)
	require.NoError(t, err)

	require.Len(t, cands, 1)
	assert.Same(t, first, cands[0].operand)
}

func TestCollectOverrides_PlainOperandsAreSkipped(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	maskedT := makeTestType("MaskedGrid", gridT)
	j := &journal{}

	plain := makePlainOperand(gridT)
	handlerful := makeHandlerOperand(maskedT, declineHandler(j, "m"))

	cands, err := collectOverrides(makeAddOp(), VariantCall, []Operand{plain, handlerful}, nil, nil)
	require.NoError(t, err)

	require.Len(t, cands, 1)
	assert.Equal(t, "MaskedGrid", cands[0].rtype.Name())
}

func TestCollectOverrides_NoCandidates(t *testing.T) {
	gridT := makeTestType("Grid", nil)

	cands, err := collectOverrides(makeAddOp(), VariantCall,
		[]Operand{makePlainOperand(gridT), makePlainOperand(gridT)}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestCollectOverrides_DisabledOperandAborts(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	deniedT := makeTestType("Denied", nil)
	j := &journal{}

	// A candidate collected before the disabled operand does not save the call.
	in := makeHandlerOperand(gridT, declineHandler(j, "g"))
	denied := makeDisabledOperand(deniedT)

	cands, err := collectOverrides(makeAddOp(), VariantCall, []Operand{in, denied}, nil, nil)
	require.Error(t, err)
	assert.Nil(t, cands)
	assert.True(t, IsOperandUnsupported(err))
	assert.Contains(t, err.Error(), "Denied")
	assert.Contains(t, err.Error(), "does not support overridden operations")
}

func TestCollectOverrides_DisabledOutputAborts(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	deniedT := makeTestType("Denied", nil)

	cands, err := collectOverrides(makeAddOp(), VariantCall,
		[]Operand{makePlainOperand(gridT)}, []Operand{makeDisabledOperand(deniedT)}, nil)
	require.Error(t, err)
	assert.Nil(t, cands)
	assert.True(t, IsOperandUnsupported(err))
}

func TestCollectOverrides_NilOperand(t *testing.T) {
	gridT := makeTestType("Grid", nil)

	cands, err := collectOverrides(makeAddOp(), VariantCall,
		[]Operand{makePlainOperand(gridT), nil}, nil, nil)
	require.Error(t, err)
	assert.Nil(t, cands)
	assert.True(t, IsInvalidOperandAccess(err))
	assert.Contains(t, err.Error(), "failed to retrieve operand")
}

func TestCollectOverrides_ArityBound(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	op := makeAddOp() // arity 4: 2 in + 1 out + mask

	operands := make([]Operand, 5)
	for i := range operands {
		operands[i] = makePlainOperand(gridT)
	}

	cands, err := collectOverrides(op, VariantCall, operands, nil, nil)
	require.Error(t, err)
	assert.Nil(t, cands)
	assert.True(t, IsInvalidOperandAccess(err))
}

func TestCollectOverrides_MaxOperandsBound(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	// Declared arity admits more operands than the global limit.
	op := &Operation{Name: "wide", NIn: 100, NOut: 1}

	operands := make([]Operand, MaxOperands+1)
	for i := range operands {
		operands[i] = makePlainOperand(gridT)
	}

	cands, err := collectOverrides(op, VariantCall, operands, nil, nil)
	require.Error(t, err)
	assert.Nil(t, cands)
	assert.True(t, IsInvalidOperandAccess(err))
}

func TestCollectOverrides_HandlerlessCapabilityIsInvalid(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	broken := &testOperand{rtype: gridT, cap: OverrideWith{}}

	cands, err := collectOverrides(makeAddOp(), VariantCall, []Operand{broken}, nil, nil)
	require.Error(t, err)
	assert.Nil(t, cands)
	assert.True(t, IsInvalidOperandAccess(err))
}

func TestCollectOverrides_MaskOnlyCandidate(t *testing.T) {
	gridT := makeTestType("Grid", nil)
	maskT := makeTestType("Mask", nil)
	j := &journal{}

	cands, err := collectOverrides(makeAddOp(), VariantCall,
		[]Operand{makePlainOperand(gridT)}, nil, makeHandlerOperand(maskT, declineHandler(j, "mask")))
	require.NoError(t, err)

	require.Len(t, cands, 1)
	assert.Equal(t, "Mask", cands[0].rtype.Name())
}
