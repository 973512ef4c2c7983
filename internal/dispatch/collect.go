package dispatch

// candidate is one operand admitted to the resolution loop. A consumed
// candidate has its slot zeroed so it can never be invoked twice.
type candidate struct {
	operand Operand
	handler Handler
	rtype   RuntimeType
}

// collectOverrides scans a call's operands and gathers override candidates.
//
// Scan order is inputs, then outputs, then the where-mask. Each runtime
// type contributes at most one candidate: the first operand seen of that
// type wins, and later operands of the same type are skipped before their
// capability is ever queried.
//
// An operand whose capability is OverrideDisabled aborts collection with
// an OPERAND_UNSUPPORTED error, even when candidates were already found.
// A nil operand, a handler-less OverrideWith, or more operands than the
// operation's arity (or MaxOperands) allows is INVALID_OPERAND_ACCESS.
func collectOverrides(op *Operation, variant Variant, inputs, outputs []Operand, whereMask Operand) ([]candidate, error) {
	total := len(inputs) + len(outputs)
	if whereMask != nil {
		total++
	}
	if total > MaxOperands || total > op.Arity() {
		return nil, newInvalidOperandAccessError(op, variant)
	}

	scan := make([]Operand, 0, total)
	scan = append(scan, inputs...)
	scan = append(scan, outputs...)
	if whereMask != nil {
		scan = append(scan, whereMask)
	}

	var cands []candidate
	for _, operand := range scan {
		if operand == nil {
			return nil, newInvalidOperandAccessError(op, variant)
		}

		// A type that already contributed a candidate is settled: later
		// operands of the same type are skipped without a capability query.
		rt := operand.Type()
		seen := false
		for i := range cands {
			if cands[i].rtype == rt {
				seen = true
				break
			}
		}
		if seen {
			continue
		}

		switch c := operand.Override().(type) {
		case NoOverride:
			continue

		case OverrideDisabled:
			return nil, newOperandUnsupportedError(op, variant, rt.Name())

		case OverrideWith:
			if c.Handler == nil {
				return nil, newInvalidOperandAccessError(op, variant)
			}
			cands = append(cands, candidate{operand: operand, handler: c.Handler, rtype: rt})

		default:
			// Capability is sealed; only a nil capability reaches here.
			return nil, newInvalidOperandAccessError(op, variant)
		}
	}

	return cands, nil
}
