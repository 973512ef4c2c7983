package dispatch

import (
	"io"
	"log/slog"
)

// Test helper: a runtime type with an explicit parent chain.
type testType struct {
	name   string
	parent *testType
}

func (t *testType) Name() string { return t.name }

func (t *testType) DerivesFrom(ancestor RuntimeType) bool {
	anc, ok := ancestor.(*testType)
	if !ok {
		return false
	}
	for cur := t; cur != nil; cur = cur.parent {
		if cur == anc {
			return true
		}
	}
	return false
}

// Test helper: an operand with a fixed type and capability.
type testOperand struct {
	rtype *testType
	cap   Capability
}

func (o *testOperand) Type() RuntimeType    { return o.rtype }
func (o *testOperand) Override() Capability { return o.cap }

func makeTestType(name string, parent *testType) *testType {
	return &testType{name: name, parent: parent}
}

func makePlainOperand(rt *testType) *testOperand {
	return &testOperand{rtype: rt, cap: NoOverride{}}
}

func makeDisabledOperand(rt *testType) *testOperand {
	return &testOperand{rtype: rt, cap: OverrideDisabled{}}
}

func makeHandlerOperand(rt *testType, h Handler) *testOperand {
	return &testOperand{rtype: rt, cap: OverrideWith{Handler: h}}
}

// journal records handler invocations in order.
type journal struct {
	entries []string
}

func (j *journal) add(label string) {
	j.entries = append(j.entries, label)
}

func declineHandler(j *journal, label string) Handler {
	return func(recv Operand, op *Operation, v Variant, inputs []Operand, kwargs *Params) (any, error) {
		j.add(label)
		return NotImplemented, nil
	}
}

func acceptHandler(j *journal, label string, result any) Handler {
	return func(recv Operand, op *Operation, v Variant, inputs []Operand, kwargs *Params) (any, error) {
		j.add(label)
		return result, nil
	}
}

func failHandler(j *journal, label string, err error) Handler {
	return func(recv Operand, op *Operation, v Variant, inputs []Operand, kwargs *Params) (any, error) {
		j.add(label)
		return nil, err
	}
}

// captureRecorder collects every trace it is handed.
type captureRecorder struct {
	traces []Trace
}

func (r *captureRecorder) Record(tr Trace) {
	r.traces = append(r.traces, tr)
}

func makeAddOp() *Operation {
	return &Operation{Name: "add", NIn: 2, NOut: 1}
}

func quietDispatcher(opts ...Option) *Dispatcher {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return New(append(base, opts...)...)
}
