package store

import (
	"context"
	"fmt"
	"log/slog"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
)

// Sequencer yields monotonically increasing sequence numbers.
// *Clock satisfies it; tests can substitute a resettable clock.
type Sequencer interface {
	Next() int64
}

// Recorder persists dispatch traces as resolution and attempt records.
// It implements dispatch.Recorder.
//
// Each recorded trace is stamped with a sequence number from the clock
// and a fresh call token from the token generator, then written with its
// attempt trail in one transaction. Record never fails the dispatch
// path: write errors are logged and swallowed per the dispatch.Recorder
// contract.
type Recorder struct {
	store  *Store
	clock  Sequencer
	tokens ir.TokenGenerator
	logger *slog.Logger

	universeHash string
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces the sequence clock. Without this option the clock
// resumes from the store's highest recorded seq.
func WithClock(c Sequencer) RecorderOption {
	return func(r *Recorder) {
		r.clock = c
	}
}

// WithTokenGenerator replaces the call token source.
// Default: ir.UUIDv7Generator.
func WithTokenGenerator(g ir.TokenGenerator) RecorderOption {
	return func(r *Recorder) {
		r.tokens = g
	}
}

// WithLogger sets the logger used for swallowed write failures.
// Default: slog.Default().
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithUniverseHash stamps every recorded resolution with the hash of the
// universe the dispatcher was built from.
func WithUniverseHash(h string) RecorderOption {
	return func(r *Recorder) {
		r.universeHash = h
	}
}

// NewRecorder creates a Recorder over the given store.
//
// Unless WithClock overrides it, the clock resumes from the highest seq
// already in the store, so reopening a database never reuses sequence
// numbers.
func NewRecorder(s *Store, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		store:  s,
		tokens: ir.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.clock == nil {
		last, err := s.GetLastSeq(context.Background())
		if err != nil {
			return nil, fmt.Errorf("recorder: resume clock: %w", err)
		}
		r.clock = NewClockAt(last)
	}

	return r, nil
}

// Record implements dispatch.Recorder. It converts the trace to a
// resolution record plus its attempt trail and writes both atomically.
//
// The resolution draws one seq, then each attempt draws its own, so the
// trail orders strictly after its resolution and before anything
// recorded later.
func (r *Recorder) Record(tr dispatch.Trace) {
	seq := r.clock.Next()
	token := r.tokens.Generate()

	id, err := ir.ResolutionID(token, tr.Op, tr.Variant, tr.InputTypes, seq)
	if err != nil {
		r.logger.Error("resolution ID computation failed",
			"op", tr.Op,
			"variant", tr.Variant,
			"error", err,
		)
		return
	}

	res := ir.Resolution{
		ID:           id,
		CallToken:    token,
		Op:           tr.Op,
		Variant:      tr.Variant,
		InputTypes:   tr.InputTypes,
		OutputTypes:  tr.OutputTypes,
		WhereType:    tr.WhereType,
		Candidates:   tr.Candidates,
		Params:       paramsArray(tr.Params),
		Disposition:  string(tr.Disposition),
		Result:       tr.Result,
		Error:        tr.Err,
		Seq:          seq,
		UniverseHash: r.universeHash,
		EngineVer:    ir.EngineVersion,
		IRVer:        ir.IRVersion,
	}

	attempts := make([]ir.Attempt, len(tr.Attempts))
	for i, a := range tr.Attempts {
		attempts[i] = ir.Attempt{
			ResolutionID: id,
			Ordinal:      int64(a.Ordinal),
			TypeName:     a.TypeName,
			Disposition:  string(a.Disposition),
			Error:        a.Err,
			Seq:          r.clock.Next(),
		}
	}

	if _, err := r.store.WriteResolutionAtomic(context.Background(), res, attempts); err != nil {
		r.logger.Error("resolution write failed",
			"op", tr.Op,
			"id", id,
			"error", err,
		)
	}
}

// paramsArray renders trace parameters into the stored Array form,
// preserving order.
func paramsArray(entries []dispatch.ParamEntry) ir.Array {
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, len(entries))
	values := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
		values[i] = e.Value
	}
	return ir.ParamsArray(keys, values)
}
