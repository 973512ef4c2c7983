package universe

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
)

func quietDispatcher(opts ...dispatch.Option) *dispatch.Dispatcher {
	opts = append([]dispatch.Option{dispatch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return dispatch.New(opts...)
}

type captureRecorder struct {
	traces []dispatch.Trace
}

func (r *captureRecorder) Record(tr dispatch.Trace) {
	r.traces = append(r.traces, tr)
}

// buildUniverse compiles a spec, binds a quiet dispatcher, and returns both.
func buildUniverse(t *testing.T, spec *Spec, opts ...dispatch.Option) (*Universe, *dispatch.Dispatcher) {
	t.Helper()
	u, err := New(spec)
	require.NoError(t, err)
	d := quietDispatcher(opts...)
	u.BindResolver(d)
	return u, d
}

func makeCall(t *testing.T, u *Universe, op string, inputTypes ...string) *dispatch.Call {
	t.Helper()
	operation, ok := u.Operation(op)
	require.True(t, ok, "operation %q not in universe", op)
	inputs, err := u.Operands(inputTypes...)
	require.NoError(t, err)
	return &dispatch.Call{Op: operation, Variant: dispatch.VariantCall, Inputs: inputs}
}

func TestScriptedReturn(t *testing.T) {
	u, d := buildUniverse(t, makeTestSpec())

	result, handled, err := d.CheckOverride(makeCall(t, u, "add", "MaskedGrid", "Grid"))

	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, ir.Int(5), result)
}

func TestScriptedDecline(t *testing.T) {
	s := makeTestSpec()
	s.Types["MaskedGrid"] = TypeSpec{
		Parent:   "Grid",
		Override: ModeScripted,
		Behaviors: map[string]BehaviorSpec{
			"add": {Kind: KindDecline},
		},
	}
	u, d := buildUniverse(t, s)

	_, handled, err := d.CheckOverride(makeCall(t, u, "add", "MaskedGrid", "Grid"))

	require.Error(t, err)
	assert.False(t, handled)
	assert.True(t, dispatch.IsUnhandledOverride(err))
	assert.Contains(t, err.Error(), "MaskedGrid")
}

func TestScriptedErrorPropagatesUnchanged(t *testing.T) {
	s := makeTestSpec()
	s.Types["MaskedGrid"] = TypeSpec{
		Parent:   "Grid",
		Override: ModeScripted,
		Behaviors: map[string]BehaviorSpec{
			"add": {Kind: KindError, Message: "masked grids forbid add"},
		},
	}
	u, d := buildUniverse(t, s)

	_, handled, err := d.CheckOverride(makeCall(t, u, "add", "MaskedGrid", "Grid"))

	require.Error(t, err)
	assert.False(t, handled)
	assert.True(t, IsHandlerError(err))

	var he *HandlerError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "MaskedGrid", he.TypeName)
	assert.Equal(t, "add", he.Op)
	assert.Equal(t, "masked grids forbid add", he.Message)
	assert.Equal(t, "MaskedGrid handler for 'add' failed: masked grids forbid add", err.Error())
}

func TestUnscriptedOperationDeclines(t *testing.T) {
	// MaskedGrid scripts add only; multiply falls through to a decline.
	u, d := buildUniverse(t, makeTestSpec())

	_, handled, err := d.CheckOverride(makeCall(t, u, "multiply", "MaskedGrid", "Grid"))

	require.Error(t, err)
	assert.False(t, handled)
	assert.True(t, dispatch.IsUnhandledOverride(err))
}

func TestDisabledTypeAborts(t *testing.T) {
	u, d := buildUniverse(t, makeTestSpec())

	_, handled, err := d.CheckOverride(makeCall(t, u, "add", "MaskedGrid", "FrozenGrid"))

	require.Error(t, err)
	assert.False(t, handled)
	assert.True(t, dispatch.IsOperandUnsupported(err))
	assert.Contains(t, err.Error(), "FrozenGrid")
}

func TestPlainOperandsTakeDefaultPath(t *testing.T) {
	u, d := buildUniverse(t, makeTestSpec())

	result, handled, err := d.CheckOverride(makeCall(t, u, "add", "Grid", "Grid"))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, result)
}

func makeDelegatingSpec() *Spec {
	return &Spec{
		Operations: map[string]OpSpec{
			"add":      {NIn: 2, NOut: 1},
			"multiply": {NIn: 2, NOut: 1},
		},
		Types: map[string]TypeSpec{
			"Grid": {Override: ModeNone},
			"Combiner": {
				Override: ModeScripted,
				Behaviors: map[string]BehaviorSpec{
					"add":      {Kind: KindDelegate, Op: "multiply"},
					"multiply": {Kind: KindReturn, Value: ir.String("product")},
				},
			},
		},
	}
}

func TestDelegateReturnsDelegatedResult(t *testing.T) {
	u, d := buildUniverse(t, makeDelegatingSpec())

	result, handled, err := d.CheckOverride(makeCall(t, u, "add", "Combiner", "Grid"))

	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, ir.String("product"), result)
}

func TestDelegateGuardUnwinds(t *testing.T) {
	u, d := buildUniverse(t, makeDelegatingSpec())

	for i := 0; i < 3; i++ {
		_, handled, err := d.CheckOverride(makeCall(t, u, "add", "Combiner", "Grid"))
		require.NoError(t, err)
		require.True(t, handled)
	}
	assert.Equal(t, 0, u.guard.Depth())
}

func TestDelegateRecordsInnerResolutionFirst(t *testing.T) {
	rec := &captureRecorder{}
	u, d := buildUniverse(t, makeDelegatingSpec(), dispatch.WithRecorder(rec))

	_, _, err := d.CheckOverride(makeCall(t, u, "add", "Combiner", "Grid"))
	require.NoError(t, err)

	require.Len(t, rec.traces, 2, "inner resolution completes before the outer one")
	assert.Equal(t, "multiply", rec.traces[0].Op)
	assert.Equal(t, "add", rec.traces[1].Op)
}

func TestDelegatePreservesVariantAndOutputs(t *testing.T) {
	rec := &captureRecorder{}
	u, d := buildUniverse(t, makeDelegatingSpec(), dispatch.WithRecorder(rec))

	out, err := u.Operands("Grid")
	require.NoError(t, err)
	call := makeCall(t, u, "add", "Combiner", "Grid")
	call.Variant = dispatch.VariantOuter
	call.Outputs = out

	_, handled, err := d.CheckOverride(call)
	require.NoError(t, err)
	require.True(t, handled)

	require.Len(t, rec.traces, 2)
	inner := rec.traces[0]
	assert.Equal(t, "multiply", inner.Op)
	assert.Equal(t, "outer", inner.Variant)
	assert.Equal(t, []string{"Grid"}, inner.OutputTypes, "outputs lifted out of kwargs on re-entry")
}

func TestDelegateWithoutResolverFails(t *testing.T) {
	u, err := New(makeDelegatingSpec())
	require.NoError(t, err)
	d := quietDispatcher() // never bound to the universe

	_, handled, err := d.CheckOverride(makeCall(t, u, "add", "Combiner", "Grid"))

	require.Error(t, err)
	assert.False(t, handled)
	assert.Contains(t, err.Error(), "no resolver is bound")
}

func TestDelegationCycleCapped(t *testing.T) {
	s := makeDelegatingSpec()
	s.Types["Combiner"] = TypeSpec{
		Override: ModeScripted,
		Behaviors: map[string]BehaviorSpec{
			"add":      {Kind: KindDelegate, Op: "multiply"},
			"multiply": {Kind: KindDelegate, Op: "add"},
		},
	}
	u, err := New(s, WithMaxDelegationDepth(4))
	require.NoError(t, err)
	d := quietDispatcher()
	u.BindResolver(d)

	_, handled, cerr := d.CheckOverride(makeCall(t, u, "add", "Combiner", "Grid"))

	require.Error(t, cerr)
	assert.False(t, handled)
	assert.True(t, IsDelegationDepthError(cerr))

	var de *DelegationDepthError
	require.ErrorAs(t, cerr, &de)
	assert.Equal(t, 5, de.Depth)
	assert.Equal(t, 4, de.Limit)
	assert.Equal(t, 0, u.guard.Depth(), "guard unwinds after the failure")
}

func TestDelegateFromMaskOnlyCandidate(t *testing.T) {
	// A scripted where-mask is the only candidate. Its delegation cannot
	// carry the mask forward, so the inner call finds no candidates and the
	// delegation declines.
	s := makeDelegatingSpec()
	s.Types["Masker"] = TypeSpec{
		Override: ModeScripted,
		Behaviors: map[string]BehaviorSpec{
			"add": {Kind: KindDelegate, Op: "multiply"},
		},
	}
	rec := &captureRecorder{}
	u, d := buildUniverse(t, s, dispatch.WithRecorder(rec))

	mask, err := u.Operand("Masker")
	require.NoError(t, err)
	call := makeCall(t, u, "add", "Grid", "Grid")
	call.WhereMask = mask

	_, handled, cerr := d.CheckOverride(call)

	require.Error(t, cerr)
	assert.False(t, handled)
	assert.True(t, dispatch.IsUnhandledOverride(cerr))
	assert.Contains(t, cerr.Error(), "Masker")

	outer := rec.traces[len(rec.traces)-1]
	assert.Equal(t, "Masker", outer.WhereType)
	assert.Equal(t, []string{"Grid", "Grid"}, outer.InputTypes, "mask type stays out of the input types")
}
