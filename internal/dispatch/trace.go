package dispatch

import (
	"fmt"
	"strings"
)

// Disposition classifies how a resolution, or one attempt inside it, ended.
type Disposition string

const (
	// DispositionDefault: no operand carried an override; the caller's
	// default implementation runs. Resolution-level only.
	DispositionDefault Disposition = "default"

	// DispositionHandled: a handler accepted the call and produced a
	// result. Resolution-level only.
	DispositionHandled Disposition = "handled"

	// DispositionUnsupported: an operand forbids overridden operations.
	// Resolution-level only.
	DispositionUnsupported Disposition = "unsupported"

	// DispositionUnhandled: every candidate declined. Resolution-level only.
	DispositionUnhandled Disposition = "unhandled"

	// DispositionInvalid: the call's operand sequences were malformed or
	// the variant was unknown. Resolution-level only.
	DispositionInvalid Disposition = "invalid"

	// DispositionAccepted: the attempt produced a result. Attempt-level only.
	DispositionAccepted Disposition = "accepted"

	// DispositionDeclined: the handler returned NotImplemented.
	// Attempt-level only.
	DispositionDeclined Disposition = "declined"

	// DispositionFailed: the handler returned an error. Used at both levels.
	DispositionFailed Disposition = "failed"
)

// Attempt records one handler invocation inside a resolution.
type Attempt struct {
	// Ordinal is the attempt's zero-based position in the resolution.
	Ordinal int

	// TypeName is the runtime type of the candidate that was invoked.
	TypeName string

	// Disposition is accepted, declined, or failed.
	Disposition Disposition

	// Err is the handler's error text when Disposition is failed.
	Err string
}

// ParamEntry is one normalized parameter rendered for tracing. Values are
// rendered, not retained: traces must not pin operands alive.
type ParamEntry struct {
	Key   string
	Value string
}

// Trace is the complete record of one resolution.
type Trace struct {
	// Op and Variant identify the dispatched call.
	Op      string
	Variant string

	// InputTypes and OutputTypes are the operand type names in call order.
	InputTypes  []string
	OutputTypes []string

	// WhereType is the mask operand's type name, empty when the call
	// carries no mask.
	WhereType string

	// Candidates holds the candidate type names in collection order.
	Candidates []string

	// Params holds the normalized parameters in their final order.
	// Empty when dispatch ended before normalization.
	Params []ParamEntry

	// Attempts holds one record per handler invocation, in order.
	Attempts []Attempt

	// Disposition is the resolution's final classification.
	Disposition Disposition

	// Result is the accepted handler's result, rendered. Empty unless
	// Disposition is handled.
	Result string

	// Err is the failure text for unsupported, unhandled, invalid, and
	// failed resolutions.
	Err string
}

// Recorder observes completed resolutions.
//
// Record is called exactly once per resolved CheckOverride call, on every
// exit path, after the outcome is decided. A call rejected before
// resolution starts (nil call, nil operation) records nothing: there is
// no operation to attribute the trace to. Implementations must not block
// the dispatch path and must swallow their own failures.
type Recorder interface {
	Record(Trace)
}

// typeNames renders an operand sequence as its type names.
func typeNames(operands []Operand) []string {
	if len(operands) == 0 {
		return nil
	}
	names := make([]string, len(operands))
	for i, o := range operands {
		if o == nil {
			names[i] = "<nil>"
			continue
		}
		names[i] = o.Type().Name()
	}
	return names
}

// renderParams renders a parameter set for a trace.
func renderParams(p *Params) []ParamEntry {
	keys := p.Keys()
	if len(keys) == 0 {
		return nil
	}
	entries := make([]ParamEntry, len(keys))
	for i, k := range keys {
		v, _ := p.Get(k)
		entries[i] = ParamEntry{Key: k, Value: renderParamValue(v)}
	}
	return entries
}

// renderParamValue renders one parameter value. Operands render as their
// type names so traces stay small and never retain operand references.
func renderParamValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case []Operand:
		return "[" + strings.Join(typeNames(t), " ") + "]"
	case Operand:
		return t.Type().Name()
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
