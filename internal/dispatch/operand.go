package dispatch

// MaxOperands bounds the total number of operands a single call may carry,
// regardless of any operation's declared arity. This is the only shared
// dispatch limit and it is immutable; everything else is per-call state.
const MaxOperands = 64

// RuntimeType identifies the concrete type of an operand at dispatch time.
//
// Implementations must be comparable: two operands share a runtime type
// exactly when their RuntimeType values compare equal with ==. Candidate
// deduplication and subtype ranking both rely on this identity.
type RuntimeType interface {
	// Name returns the type's display name for diagnostics and traces.
	Name() string

	// DerivesFrom reports whether the receiver is ancestor itself or a
	// descendant of it. Strictness is the caller's concern: a strict
	// subtype check pairs DerivesFrom with an != comparison.
	DerivesFrom(ancestor RuntimeType) bool
}

// Operand is a single value participating in an operation call.
type Operand interface {
	// Type returns the operand's runtime type. Must not return nil.
	Type() RuntimeType

	// Override reports how the operand participates in override dispatch.
	Override() Capability
}

// Capability describes an operand's participation in override dispatch.
// Exactly three states exist:
//
//   - NoOverride: the operand carries no handler and is skipped.
//   - OverrideDisabled: the operand rejects overridden operations outright;
//     its presence anywhere in a call aborts dispatch.
//   - OverrideWith: the operand supplies a handler as a candidate.
//
// The interface is sealed. Only the three types above implement it.
type Capability interface {
	capability()
}

// NoOverride is the capability of an operand that never participates.
type NoOverride struct{}

// OverrideDisabled is the capability of an operand that forbids overridden
// operations entirely.
type OverrideDisabled struct{}

// OverrideWith is the capability of an operand offering a handler.
type OverrideWith struct {
	Handler Handler
}

func (NoOverride) capability()       {}
func (OverrideDisabled) capability() {}
func (OverrideWith) capability()     {}

// Handler processes an overridden operation call.
//
// recv is the operand whose capability supplied the handler. inputs is the
// call's original input sequence, unmodified. kwargs is the normalized
// parameter set; handlers may read and mutate it freely, the dispatcher
// never looks at it again.
//
// A handler declines by returning the NotImplemented sentinel, which hands
// the call to the next candidate. A returned error aborts dispatch and
// propagates to the caller unchanged.
type Handler func(recv Operand, op *Operation, variant Variant, inputs []Operand, kwargs *Params) (any, error)

type notImplemented struct{}

func (notImplemented) String() string { return "NotImplemented" }

// NotImplemented is the sentinel a handler returns to decline a call.
// Compared by value: res == NotImplemented.
var NotImplemented any = notImplemented{}

type noValue struct{}

func (noValue) String() string { return "NoValue" }

// NoValue marks an optional argument that was never supplied. It is used
// by calling conventions that pass absent optionals positionally; the
// normalizer drops it so handlers never observe the sentinel.
var NoValue any = noValue{}

// Operation identifies a universal operation by name and declared arity.
type Operation struct {
	// Name is the operation's identifier, e.g. "add".
	Name string

	// NIn is the number of declared inputs.
	NIn int

	// NOut is the number of declared outputs.
	NOut int
}

// Arity returns the most operands a call to this operation may carry:
// the declared inputs, the declared outputs, and one optional where-mask.
func (op *Operation) Arity() int {
	return op.NIn + op.NOut + 1
}
