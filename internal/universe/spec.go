package universe

import (
	"fmt"
	"sort"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
)

// OverrideMode states how a type's operands participate in dispatch.
type OverrideMode string

const (
	// ModeNone: operands carry no handler and are skipped.
	ModeNone OverrideMode = "none"

	// ModeDisabled: operands forbid overridden operations entirely.
	ModeDisabled OverrideMode = "disabled"

	// ModeScripted: operands supply a handler driven by the type's behaviors.
	ModeScripted OverrideMode = "scripted"
)

// ValidOverrideModes defines the allowed override modes.
var ValidOverrideModes = map[OverrideMode]bool{
	ModeNone:     true,
	ModeDisabled: true,
	ModeScripted: true,
}

// BehaviorKind states what a scripted handler does for one operation.
type BehaviorKind string

const (
	// KindDecline: return the NotImplemented sentinel.
	KindDecline BehaviorKind = "decline"

	// KindReturn: return a fixed value.
	KindReturn BehaviorKind = "return"

	// KindError: fail with a scripted message.
	KindError BehaviorKind = "error"

	// KindDelegate: re-dispatch the call under another operation.
	KindDelegate BehaviorKind = "delegate"
)

// ValidBehaviorKinds defines the allowed behavior kinds.
var ValidBehaviorKinds = map[BehaviorKind]bool{
	KindDecline:  true,
	KindReturn:   true,
	KindError:    true,
	KindDelegate: true,
}

// Spec is the declarative form of a universe, as produced by the compiler.
// It is plain data: construct a runtime Universe from it with New.
type Spec struct {
	Operations map[string]OpSpec   `json:"operations"`
	Types      map[string]TypeSpec `json:"types"`
}

// OpSpec declares one operation's arity.
type OpSpec struct {
	NIn  int `json:"nin"`
	NOut int `json:"nout"`
}

// TypeSpec declares one operand type.
type TypeSpec struct {
	Parent    string                  `json:"parent,omitempty"`
	Override  OverrideMode            `json:"override"`
	Behaviors map[string]BehaviorSpec `json:"behaviors,omitempty"`
}

// BehaviorSpec declares what a scripted handler does for one operation.
// Exactly one of Value, Message, or Op is meaningful, selected by Kind.
type BehaviorSpec struct {
	Kind    BehaviorKind `json:"kind"`
	Value   ir.Value     `json:"value,omitempty"`   // Kind == return
	Message string       `json:"message,omitempty"` // Kind == error
	Op      string       `json:"op,omitempty"`      // Kind == delegate
}

// Validate checks a Spec against schema rules.
// Returns all errors in deterministic order, not fail-fast.
func (s *Spec) Validate() []ir.ValidationError {
	var errs []ir.ValidationError

	for _, name := range sortedKeys(s.Operations) {
		op := s.Operations[name]
		field := "operations." + name
		if name == "" {
			errs = append(errs, ir.ValidationError{Field: "operations", Message: "operation name cannot be empty"})
		}
		if op.NIn < 1 {
			errs = append(errs, ir.ValidationError{Field: field + ".nin", Message: "nin must be at least 1"})
		}
		if op.NOut < 1 {
			errs = append(errs, ir.ValidationError{Field: field + ".nout", Message: "nout must be at least 1"})
		}
		if op.NIn+op.NOut+1 > dispatch.MaxOperands {
			errs = append(errs, ir.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("arity %d exceeds the operand limit %d", op.NIn+op.NOut+1, dispatch.MaxOperands),
			})
		}
	}

	for _, name := range sortedKeys(s.Types) {
		errs = append(errs, s.validateType(name, s.Types[name])...)
	}

	return errs
}

func (s *Spec) validateType(name string, t TypeSpec) []ir.ValidationError {
	var errs []ir.ValidationError
	field := "types." + name

	if name == "" {
		errs = append(errs, ir.ValidationError{Field: "types", Message: "type name cannot be empty"})
	}
	if !ValidOverrideModes[t.Override] {
		errs = append(errs, ir.ValidationError{
			Field:   field + ".override",
			Message: fmt.Sprintf("invalid override mode %q", t.Override),
		})
	}

	if t.Parent != "" {
		if _, ok := s.Types[t.Parent]; !ok {
			errs = append(errs, ir.ValidationError{
				Field:   field + ".parent",
				Message: fmt.Sprintf("unknown parent %q", t.Parent),
			})
		} else if s.parentChainCycles(name) {
			errs = append(errs, ir.ValidationError{
				Field:   field + ".parent",
				Message: "parent chain contains a cycle",
			})
		}
	}

	if len(t.Behaviors) > 0 && t.Override != ModeScripted {
		errs = append(errs, ir.ValidationError{
			Field:   field + ".behaviors",
			Message: fmt.Sprintf("behaviors require override %q", ModeScripted),
		})
	}

	for _, opName := range sortedKeys(t.Behaviors) {
		errs = append(errs, s.validateBehavior(field, opName, t.Behaviors[opName])...)
	}

	return errs
}

func (s *Spec) validateBehavior(typeField, opName string, b BehaviorSpec) []ir.ValidationError {
	var errs []ir.ValidationError
	field := typeField + ".behaviors." + opName

	if _, ok := s.Operations[opName]; !ok {
		errs = append(errs, ir.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown operation %q", opName),
		})
	}

	switch b.Kind {
	case KindDecline:
		// No payload.
	case KindReturn:
		if b.Value == nil {
			errs = append(errs, ir.ValidationError{Field: field + ".value", Message: "return behavior requires a value"})
		} else if _, err := ir.MarshalCanonical(b.Value); err != nil {
			errs = append(errs, ir.ValidationError{
				Field:   field + ".value",
				Message: fmt.Sprintf("value is not canonical-encodable: %v", err),
			})
		}
	case KindError:
		if b.Message == "" {
			errs = append(errs, ir.ValidationError{Field: field + ".message", Message: "error behavior requires a message"})
		}
	case KindDelegate:
		if b.Op == "" {
			errs = append(errs, ir.ValidationError{Field: field + ".op", Message: "delegate behavior requires a target operation"})
		} else {
			if _, ok := s.Operations[b.Op]; !ok {
				errs = append(errs, ir.ValidationError{
					Field:   field + ".op",
					Message: fmt.Sprintf("unknown delegate target %q", b.Op),
				})
			}
			if b.Op == opName {
				errs = append(errs, ir.ValidationError{
					Field:   field + ".op",
					Message: "delegate target must differ from the scripted operation",
				})
			}
		}
	default:
		errs = append(errs, ir.ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("invalid behavior kind %q", b.Kind),
		})
	}

	return errs
}

// parentChainCycles reports whether the parent chain starting at name
// revisits a type. The walk is bounded by the type count, so a cycle
// anywhere on the chain is caught even when name itself is outside it.
func (s *Spec) parentChainCycles(name string) bool {
	seen := make(map[string]bool, len(s.Types))
	cur := name
	for cur != "" {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		t, ok := s.Types[cur]
		if !ok {
			return false
		}
		cur = t.Parent
	}
	return false
}

// CanonicalObject renders the spec as a canonical-form object for hashing.
func (s *Spec) CanonicalObject() ir.Object {
	ops := make(ir.Object, len(s.Operations))
	for name, op := range s.Operations {
		ops[name] = ir.Object{
			"nin":  ir.Int(op.NIn),
			"nout": ir.Int(op.NOut),
		}
	}

	types := make(ir.Object, len(s.Types))
	for name, t := range s.Types {
		obj := ir.Object{"override": ir.String(t.Override)}
		if t.Parent != "" {
			obj["parent"] = ir.String(t.Parent)
		}
		if len(t.Behaviors) > 0 {
			behaviors := make(ir.Object, len(t.Behaviors))
			for opName, b := range t.Behaviors {
				bo := ir.Object{"kind": ir.String(b.Kind)}
				if b.Value != nil {
					bo["value"] = b.Value
				}
				if b.Message != "" {
					bo["message"] = ir.String(b.Message)
				}
				if b.Op != "" {
					bo["op"] = ir.String(b.Op)
				}
				behaviors[opName] = bo
			}
			obj["behaviors"] = behaviors
		}
		types[name] = obj
	}

	return ir.Object{
		"operations": ops,
		"types":      types,
	}
}

// Hash computes the spec's content-addressed identity.
func (s *Spec) Hash() (string, error) {
	return ir.UniverseHash(s.CanonicalObject())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
