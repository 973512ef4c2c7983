package universe

import (
	"errors"
	"fmt"
	"strings"

	"overrule/internal/dispatch"
)

// Resolver resolves overridden calls. *dispatch.Dispatcher implements it;
// delegate behaviors re-enter dispatch through this interface.
type Resolver interface {
	CheckOverride(call *dispatch.Call) (any, bool, error)
}

// Universe is a resolved operand type system built from a Spec.
//
// Thread-safety: a built universe is read-only and safe for concurrent
// dispatch, except BindResolver, which must be called before dispatching.
type Universe struct {
	spec     *Spec
	hash     string
	ops      map[string]*dispatch.Operation
	types    map[string]*TypeDef
	guard    *DelegationGuard
	resolver Resolver
}

// Option configures a Universe.
type Option func(*Universe)

// WithMaxDelegationDepth overrides the delegation nesting limit.
func WithMaxDelegationDepth(n int) Option {
	return func(u *Universe) {
		u.guard = NewDelegationGuard(n)
	}
}

// New builds a runtime Universe from a validated spec.
func New(spec *Spec, opts ...Option) (*Universe, error) {
	if spec == nil {
		return nil, errors.New("universe: spec is nil")
	}
	if errs := spec.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("universe: invalid spec: %s", strings.Join(msgs, "; "))
	}

	hash, err := spec.Hash()
	if err != nil {
		return nil, fmt.Errorf("universe: failed to hash spec: %w", err)
	}

	u := &Universe{
		spec:  spec,
		hash:  hash,
		ops:   make(map[string]*dispatch.Operation, len(spec.Operations)),
		types: make(map[string]*TypeDef, len(spec.Types)),
		guard: NewDelegationGuard(DefaultMaxDelegationDepth),
	}
	for _, opt := range opts {
		opt(u)
	}

	for name, op := range spec.Operations {
		u.ops[name] = &dispatch.Operation{Name: name, NIn: op.NIn, NOut: op.NOut}
	}

	// Two passes: create every TypeDef, then wire parents.
	for name, t := range spec.Types {
		u.types[name] = &TypeDef{
			name:      name,
			mode:      t.Override,
			behaviors: t.Behaviors,
		}
	}
	for name, t := range spec.Types {
		if t.Parent != "" {
			u.types[name].parent = u.types[t.Parent]
		}
	}

	return u, nil
}

// BindResolver supplies the resolver that delegate behaviors re-enter.
// Call once, before dispatching.
func (u *Universe) BindResolver(r Resolver) {
	u.resolver = r
}

// Spec returns the spec the universe was built from.
func (u *Universe) Spec() *Spec { return u.spec }

// Hash returns the spec's content-addressed identity.
func (u *Universe) Hash() string { return u.hash }

// Type looks up a type by name.
func (u *Universe) Type(name string) (*TypeDef, bool) {
	t, ok := u.types[name]
	return t, ok
}

// Operation looks up an operation by name.
func (u *Universe) Operation(name string) (*dispatch.Operation, bool) {
	op, ok := u.ops[name]
	return op, ok
}

// TypeNames returns every type name, sorted.
func (u *Universe) TypeNames() []string {
	return sortedKeys(u.types)
}

// OperationNames returns every operation name, sorted.
func (u *Universe) OperationNames() []string {
	return sortedKeys(u.ops)
}

// Operand constructs an operand of the named type.
func (u *Universe) Operand(typeName string) (*Operand, error) {
	t, ok := u.types[typeName]
	if !ok {
		return nil, fmt.Errorf("universe: unknown type %q", typeName)
	}
	return &Operand{typ: t, u: u}, nil
}

// Operands constructs one operand per name, in order.
func (u *Universe) Operands(typeNames ...string) ([]dispatch.Operand, error) {
	if len(typeNames) == 0 {
		return nil, nil
	}
	operands := make([]dispatch.Operand, len(typeNames))
	for i, name := range typeNames {
		o, err := u.Operand(name)
		if err != nil {
			return nil, err
		}
		operands[i] = o
	}
	return operands, nil
}

// handlerFor builds the dispatch handler for a scripted type. An operation
// the type does not script is declined.
func (u *Universe) handlerFor(t *TypeDef) dispatch.Handler {
	return func(recv dispatch.Operand, op *dispatch.Operation, variant dispatch.Variant, inputs []dispatch.Operand, kwargs *dispatch.Params) (any, error) {
		b, ok := t.behaviors[op.Name]
		if !ok {
			return dispatch.NotImplemented, nil
		}

		switch b.Kind {
		case KindDecline:
			return dispatch.NotImplemented, nil
		case KindReturn:
			return b.Value, nil
		case KindError:
			return nil, &HandlerError{TypeName: t.name, Op: op.Name, Message: b.Message}
		case KindDelegate:
			return u.delegate(t, b.Op, variant, inputs, kwargs)
		default:
			return nil, fmt.Errorf("universe: type %q has unknown behavior kind %q for %q", t.name, b.Kind, op.Name)
		}
	}
}

// delegate re-dispatches the call under another operation. Outputs travel
// inside kwargs after normalization, so they are lifted back out before
// re-entry; everything else becomes a keyword argument of the inner call.
func (u *Universe) delegate(t *TypeDef, opName string, variant dispatch.Variant, inputs []dispatch.Operand, kwargs *dispatch.Params) (any, error) {
	if u.resolver == nil {
		return nil, fmt.Errorf("universe: type %q delegates to %q but no resolver is bound", t.name, opName)
	}
	target, ok := u.ops[opName]
	if !ok {
		return nil, fmt.Errorf("universe: unknown delegate target %q", opName)
	}

	if err := u.guard.Enter(t.name, opName); err != nil {
		return nil, err
	}
	defer u.guard.Exit()

	var outputs []dispatch.Operand
	extras := make([]any, 0, kwargs.Len())
	names := make([]string, 0, kwargs.Len())
	for _, k := range kwargs.Keys() {
		v, _ := kwargs.Get(k)
		if k == "out" {
			if seq, ok := v.([]dispatch.Operand); ok {
				outputs = seq
				continue
			}
		}
		extras = append(extras, v)
		names = append(names, k)
	}

	res, handled, err := u.resolver.CheckOverride(&dispatch.Call{
		Op:      target,
		Variant: variant,
		Inputs:  inputs,
		Outputs: outputs,
		Extras:  extras,
		KwNames: names,
	})
	if err != nil {
		return nil, err
	}
	if !handled {
		return dispatch.NotImplemented, nil
	}
	return res, nil
}

// HandlerError is the error a scripted error behavior produces. It reaches
// the original caller unchanged.
type HandlerError struct {
	TypeName string
	Op       string
	Message  string
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler for '%s' failed: %s", e.TypeName, e.Op, e.Message)
}

// IsHandlerError returns true if the error is a HandlerError.
// Uses errors.As to handle wrapped errors.
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}
