// Package compiler turns CUE universe definitions into universe specs.
// It performs structural checks only (required fields, field types);
// semantic validation belongs to universe.Spec.Validate.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"overrule/internal/ir"
	"overrule/internal/universe"
)

// CompileUniverse parses a CUE value into a universe spec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the universe struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`universe: { operations: ..., types: ... }`)
//	spec, err := CompileUniverse(v.LookupPath(cue.ParsePath("universe")))
func CompileUniverse(v cue.Value) (*universe.Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "universe",
			Message: "universe struct is required",
			Pos:     v.Pos(),
		}
	}

	spec := &universe.Spec{
		Operations: make(map[string]universe.OpSpec),
		Types:      make(map[string]universe.TypeSpec),
	}

	if err := parseOperations(v, spec); err != nil {
		return nil, err
	}
	if len(spec.Operations) == 0 {
		return nil, &CompileError{
			Field:   "operations",
			Message: "at least one operation is required",
			Pos:     v.Pos(),
		}
	}

	if err := parseTypes(v, spec); err != nil {
		return nil, err
	}
	if len(spec.Types) == 0 {
		return nil, &CompileError{
			Field:   "types",
			Message: "at least one type is required",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// parseOperations extracts operation arities from the universe.
func parseOperations(v cue.Value, spec *universe.Spec) error {
	opsVal := v.LookupPath(cue.ParsePath("operations"))
	if !opsVal.Exists() {
		return nil
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		opName := iter.Label()
		opValue := iter.Value()

		nin, err := requiredInt(opValue, "nin", fmt.Sprintf("operations.%s.nin", opName))
		if err != nil {
			return err
		}
		nout, err := requiredInt(opValue, "nout", fmt.Sprintf("operations.%s.nout", opName))
		if err != nil {
			return err
		}

		spec.Operations[opName] = universe.OpSpec{NIn: int(nin), NOut: int(nout)}
	}

	return nil
}

// parseTypes extracts type definitions from the universe.
func parseTypes(v cue.Value, spec *universe.Spec) error {
	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		typeName := iter.Label()
		typeValue := iter.Value()

		t := universe.TypeSpec{Override: universe.ModeNone}

		parentVal := typeValue.LookupPath(cue.ParsePath("parent"))
		if parentVal.Exists() {
			parent, err := parentVal.String()
			if err != nil {
				return formatCUEError(err)
			}
			t.Parent = parent
		}

		overrideVal := typeValue.LookupPath(cue.ParsePath("override"))
		if overrideVal.Exists() {
			override, err := overrideVal.String()
			if err != nil {
				return formatCUEError(err)
			}
			t.Override = universe.OverrideMode(override)
		}

		behaviors, err := parseBehaviors(typeValue, typeName)
		if err != nil {
			return err
		}
		t.Behaviors = behaviors

		spec.Types[typeName] = t
	}

	return nil
}

// parseBehaviors extracts the scripted behavior table of one type.
func parseBehaviors(typeValue cue.Value, typeName string) (map[string]universe.BehaviorSpec, error) {
	behaviorsVal := typeValue.LookupPath(cue.ParsePath("behaviors"))
	if !behaviorsVal.Exists() {
		return nil, nil
	}

	behaviors := make(map[string]universe.BehaviorSpec)

	iter, err := behaviorsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		opName := iter.Label()
		bVal := iter.Value()
		field := fmt.Sprintf("types.%s.behaviors.%s", typeName, opName)

		kindVal := bVal.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".kind",
				Message: "behavior kind is required",
				Pos:     bVal.Pos(),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		b := universe.BehaviorSpec{Kind: universe.BehaviorKind(kind)}

		valueVal := bVal.LookupPath(cue.ParsePath("value"))
		if valueVal.Exists() {
			value, err := extractValue(valueVal)
			if err != nil {
				return nil, err
			}
			b.Value = value
		}

		messageVal := bVal.LookupPath(cue.ParsePath("message"))
		if messageVal.Exists() {
			message, err := messageVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			b.Message = message
		}

		opVal := bVal.LookupPath(cue.ParsePath("op"))
		if opVal.Exists() {
			op, err := opVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			b.Op = op
		}

		behaviors[opName] = b
	}

	return behaviors, nil
}

// requiredInt reads a required integer field.
func requiredInt(v cue.Value, path, field string) (int64, error) {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := fieldVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// extractValue converts a concrete CUE value to an ir.Value.
// Floats and null are forbidden.
func extractValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr ir.Array
		for iter.Next() {
			elem, err := extractValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := make(ir.Object)
		for iter.Next() {
			elem, err := extractValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	case cue.NullKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "null values are forbidden",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
