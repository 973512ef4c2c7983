package universe

import (
	"overrule/internal/dispatch"
)

// TypeDef is a resolved operand type inside a universe. It implements
// dispatch.RuntimeType: two operands share a runtime type exactly when
// they point at the same TypeDef.
type TypeDef struct {
	name      string
	parent    *TypeDef
	mode      OverrideMode
	behaviors map[string]BehaviorSpec
}

// Name returns the type's display name.
func (t *TypeDef) Name() string { return t.name }

// Parent returns the type's parent, or nil for a root type.
func (t *TypeDef) Parent() *TypeDef { return t.parent }

// Mode returns the type's override mode.
func (t *TypeDef) Mode() OverrideMode { return t.mode }

// DerivesFrom reports whether t is ancestor itself or a descendant of it.
func (t *TypeDef) DerivesFrom(ancestor dispatch.RuntimeType) bool {
	anc, ok := ancestor.(*TypeDef)
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

// Operand is a value of some universe type participating in a call.
// It implements dispatch.Operand.
type Operand struct {
	typ *TypeDef
	u   *Universe
}

// Type returns the operand's runtime type.
func (o *Operand) Type() dispatch.RuntimeType { return o.typ }

// Override reports the operand's dispatch capability, derived from its
// type's override mode.
func (o *Operand) Override() dispatch.Capability {
	switch o.typ.mode {
	case ModeDisabled:
		return dispatch.OverrideDisabled{}
	case ModeScripted:
		return dispatch.OverrideWith{Handler: o.u.handlerFor(o.typ)}
	default:
		return dispatch.NoOverride{}
	}
}

func (o *Operand) String() string { return o.typ.name }
