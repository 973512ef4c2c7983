package dispatch

import "errors"

// Call describes one operation invocation to resolve.
//
// Inputs, Outputs, and WhereMask carry the call's operands. Extras is the
// flat supplemental argument vector: its leading entries were passed
// positionally, and its trailing entries are named, in order, by KwNames.
// KwNames therefore always names a suffix of Extras.
type Call struct {
	Op        *Operation
	Variant   Variant
	Inputs    []Operand
	Outputs   []Operand
	WhereMask Operand
	Extras    []any
	KwNames   []string
}

// CheckOverride resolves which override handler, if any, processes a call.
//
// When no operand carries an override, CheckOverride returns
// (nil, false, nil) and the caller runs its default implementation. When a
// handler accepts the call, its result is returned with handled == true.
// Everything else is an error: a handler's own error propagates unchanged,
// and dispatch failures carry an *Error code.
//
// Candidates are tried most-derived first. Each round rescans the
// surviving candidates from the left and passes over a candidate while any
// survivor to its right has a runtime type that strictly derives from its
// own; the first candidate nobody outranks wins the round. Ties between
// unrelated types therefore resolve left-to-right in collection order.
// A candidate's slot is cleared when it is invoked, so each handler runs
// at most once per call; a handler returning NotImplemented hands the call
// to the winner of the next round.
func (d *Dispatcher) CheckOverride(call *Call) (result any, handled bool, err error) {
	if call == nil || call.Op == nil {
		return nil, false, &Error{
			Code:    ErrCodeInvalidOperandAccess,
			Message: "call has no operation",
		}
	}
	op := call.Op

	tr := Trace{
		Op:          op.Name,
		Variant:     call.Variant.String(),
		InputTypes:  typeNames(call.Inputs),
		OutputTypes: typeNames(call.Outputs),
	}
	if call.WhereMask != nil {
		tr.WhereType = call.WhereMask.Type().Name()
	}
	defer func() { d.record(&tr) }()

	cands, err := collectOverrides(op, call.Variant, call.Inputs, call.Outputs, call.WhereMask)
	if err != nil {
		tr.Disposition = dispositionForError(err)
		tr.Err = err.Error()
		d.logger.Warn("override collection failed",
			"op", op.Name,
			"variant", call.Variant.String(),
			"error", err,
		)
		return nil, false, err
	}

	if len(cands) == 0 {
		tr.Disposition = DispositionDefault
		d.logger.Debug("no override candidates, default path",
			"op", op.Name,
			"variant", call.Variant.String(),
		)
		return nil, false, nil
	}

	tr.Candidates = make([]string, len(cands))
	for i := range cands {
		tr.Candidates[i] = cands[i].rtype.Name()
	}

	kwargs := NewParams()
	if err := normalizeParams(op, call.Variant, call.Outputs, call.Extras, call.KwNames, kwargs); err != nil {
		tr.Disposition = dispositionForError(err)
		tr.Err = err.Error()
		return nil, false, err
	}
	tr.Params = renderParams(kwargs)

	d.logger.Debug("override candidates collected",
		"op", op.Name,
		"variant", call.Variant.String(),
		"candidates", tr.Candidates,
	)

	declined := make([]string, 0, len(cands))
	for {
		chosen := -1
		for i := range cands {
			if cands[i].handler == nil {
				continue
			}
			outranked := false
			for j := i + 1; j < len(cands); j++ {
				if cands[j].handler == nil {
					continue
				}
				if cands[j].rtype != cands[i].rtype && cands[j].rtype.DerivesFrom(cands[i].rtype) {
					outranked = true
					break
				}
			}
			if !outranked {
				chosen = i
				break
			}
		}

		if chosen == -1 {
			// Every candidate was consumed and declined.
			msg := d.formatter(op, call.Variant, call.Inputs, kwargs, declined)
			uerr := &Error{
				Code:    ErrCodeUnhandledOverride,
				Message: msg,
				Op:      op.Name,
				Variant: call.Variant.String(),
			}
			tr.Disposition = DispositionUnhandled
			tr.Err = uerr.Error()
			d.logger.Warn("all override handlers declined",
				"op", op.Name,
				"variant", call.Variant.String(),
				"declined", declined,
			)
			return nil, false, uerr
		}

		cand := cands[chosen]
		// Consume the slot before invoking. Whatever survives when the
		// call returns is dropped wholesale with the candidate list.
		cands[chosen] = candidate{}

		d.logger.Debug("invoking override handler",
			"op", op.Name,
			"variant", call.Variant.String(),
			"type", cand.rtype.Name(),
			"attempt", len(tr.Attempts),
		)

		res, herr := cand.handler(cand.operand, op, call.Variant, call.Inputs, kwargs)
		attempt := Attempt{Ordinal: len(tr.Attempts), TypeName: cand.rtype.Name()}

		if herr != nil {
			attempt.Disposition = DispositionFailed
			attempt.Err = herr.Error()
			tr.Attempts = append(tr.Attempts, attempt)
			tr.Disposition = DispositionFailed
			tr.Err = herr.Error()
			return nil, false, herr
		}

		if res == NotImplemented {
			attempt.Disposition = DispositionDeclined
			tr.Attempts = append(tr.Attempts, attempt)
			declined = append(declined, cand.rtype.Name())
			continue
		}

		attempt.Disposition = DispositionAccepted
		tr.Attempts = append(tr.Attempts, attempt)
		tr.Disposition = DispositionHandled
		tr.Result = renderParamValue(res)
		d.logger.Debug("override handled",
			"op", op.Name,
			"variant", call.Variant.String(),
			"type", cand.rtype.Name(),
		)
		return res, true, nil
	}
}

// dispositionForError classifies a collection or normalization failure.
func dispositionForError(err error) Disposition {
	var de *Error
	if errors.As(err, &de) && de.Code == ErrCodeOperandUnsupported {
		return DispositionUnsupported
	}
	return DispositionInvalid
}
