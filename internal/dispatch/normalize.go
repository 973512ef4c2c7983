package dispatch

// normalizeParams folds a call's supplemental arguments into kwargs.
//
// Three steps run in order:
//
//  1. The keyword suffix of extras is copied in under its KwNames entries,
//     preserving keyword order.
//  2. The "out" key is forced to a copy of the output sequence when
//     outputs exist, and removed entirely when none do. A keyword-passed
//     "out" keeps its position; a purely positional one lands at the end.
//  3. The variant's schema folds the leading positional extras into their
//     named slots, or renames sig to signature for the call and outer
//     forms. The rename is set-then-delete, so the key moves to the end.
//
// Values are never inspected beyond the NoValue sentinel comparison for
// the schema's sentinel slot; handlers see exactly what the caller passed.
func normalizeParams(op *Operation, variant Variant, outputs []Operand, extras []any, kwNames []string, kwargs *Params) error {
	schema, ok := variantSchemas[variant]
	if !ok {
		return newUnknownVariantError(op, variant)
	}

	nPos := len(extras) - len(kwNames)
	if nPos < 0 {
		return newInvalidOperandAccessError(op, variant)
	}

	for i, name := range kwNames {
		kwargs.Set(name, extras[nPos+i])
	}

	if len(outputs) > 0 {
		outs := make([]Operand, len(outputs))
		copy(outs, outputs)
		kwargs.Set("out", outs)
	} else {
		kwargs.Delete("out")
	}

	if schema.renameSignature {
		if sig, ok := kwargs.Get("sig"); ok {
			kwargs.Set("signature", sig)
			kwargs.Delete("sig")
		}
	}

	for i, name := range schema.slots {
		if i >= nPos {
			break
		}
		if name == "" {
			// Slot travels in the input or output sequences already.
			continue
		}
		if i == schema.sentinelSlot && extras[i] == NoValue {
			continue
		}
		kwargs.Set(name, extras[i])
	}

	return nil
}
