package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"overrule/internal/compiler"
	"overrule/internal/dispatch"
	"overrule/internal/store"
	"overrule/internal/universe"
)

// Harness executes one scenario. It owns a compiled universe, the
// dispatcher bound to it, and the store the dispatcher records into.
type Harness struct {
	universe *universe.Universe
	resolver *dispatch.Dispatcher
	store    *store.Store
	logger   *slog.Logger
}

// tokenSource yields call tokens for one run: the scenario's fixed list
// first, then tokens derived from the prefix and a counter. Delegated
// resolutions draw tokens too, so the source never exhausts.
type tokenSource struct {
	prefix string
	fixed  []string
	n      int
}

// Generate implements ir.TokenGenerator.
func (t *tokenSource) Generate() string {
	t.n++
	if t.n <= len(t.fixed) {
		return t.fixed[t.n-1]
	}
	return fmt.Sprintf("%s-call-%06d", t.prefix, t.n)
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store, a zeroed sequence
// clock, and a scenario-scoped token source, so two runs of the same
// scenario record identical rows. Calls execute through the real
// resolution path; expect clauses and assertions turn into failure
// messages on the result rather than errors. Run itself fails only on
// infrastructure problems.
func Run(scenario *Scenario) (*Result, error) {
	u, err := loadUniverse(scenario.Universe)
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec, err := store.NewRecorder(st,
		store.WithClock(store.NewClock()),
		store.WithTokenGenerator(&tokenSource{prefix: scenario.Name, fixed: scenario.CallTokens}),
		store.WithUniverseHash(u.Hash()),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	resolver := dispatch.New(
		dispatch.WithLogger(logger),
		dispatch.WithRecorder(rec),
	)
	u.BindResolver(resolver)

	h := &Harness{
		universe: u,
		resolver: resolver,
		store:    st,
		logger:   logger,
	}

	ctx := context.Background()
	result := NewResult()
	result.UniverseHash = u.Hash()

	if err := h.executeCalls(ctx, scenario.Calls, result); err != nil {
		return nil, fmt.Errorf("failed to execute calls: %w", err)
	}

	result.Resolutions, err = st.ReadAllResolutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read recorded resolutions: %w", err)
	}
	result.Attempts, err = st.ReadAllAttempts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read recorded attempts: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// loadUniverse compiles a CUE universe file into a runtime universe.
func loadUniverse(path string) (*universe.Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	cctx := cuecontext.New()
	v := cctx.CompileBytes(data, cue.Filename(path))
	spec, err := compiler.CompileUniverse(v.LookupPath(cue.ParsePath("universe")))
	if err != nil {
		return nil, err
	}

	return universe.New(spec)
}

// executeCalls dispatches every scenario call in order. Each call records
// exactly one top-level resolution; with delegation the inner resolutions
// record first, so the call's own row is the last one added.
func (h *Harness) executeCalls(ctx context.Context, calls []ScenarioCall, result *Result) error {
	recorded := 0
	for i, sc := range calls {
		call, err := h.buildCall(sc)
		if err != nil {
			return fmt.Errorf("calls[%d]: %w", i, err)
		}

		_, handled, callErr := h.resolver.CheckOverride(call)

		rows, err := h.store.ReadAllResolutions(ctx)
		if err != nil {
			return fmt.Errorf("calls[%d]: failed to read resolutions: %w", i, err)
		}
		if len(rows) <= recorded {
			return fmt.Errorf("calls[%d]: no resolution was recorded", i)
		}
		row := rows[len(rows)-1]
		recorded = len(rows)

		outcome := CallOutcome{
			Op:           sc.Op,
			Variant:      call.Variant.String(),
			InputTypes:   append([]string(nil), sc.Inputs...),
			Handled:      handled,
			Disposition:  row.Disposition,
			Result:       row.Result,
			ResolutionID: row.ID,
		}
		if callErr != nil {
			outcome.Err = callErr.Error()
		}
		result.Outcomes = append(result.Outcomes, outcome)

		checkExpect(i, sc.Expect, outcome, result)
	}
	return nil
}

// buildCall turns a scenario call into a dispatch call, constructing
// operands from the universe's type names.
func (h *Harness) buildCall(sc ScenarioCall) (*dispatch.Call, error) {
	op, ok := h.universe.Operation(sc.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", sc.Op)
	}

	variant := dispatch.VariantCall
	if sc.Variant != "" {
		v, err := dispatch.ParseVariant(sc.Variant)
		if err != nil {
			return nil, err
		}
		variant = v
	}

	inputs, err := h.universe.Operands(sc.Inputs...)
	if err != nil {
		return nil, err
	}
	outputs, err := h.universe.Operands(sc.Outputs...)
	if err != nil {
		return nil, err
	}

	var mask dispatch.Operand
	if sc.WhereMask != "" {
		m, err := h.universe.Operand(sc.WhereMask)
		if err != nil {
			return nil, err
		}
		mask = m
	}

	extras, kwNames, err := buildExtras(sc.Extras, sc.Kwargs)
	if err != nil {
		return nil, err
	}

	return &dispatch.Call{
		Op:        op,
		Variant:   variant,
		Inputs:    inputs,
		Outputs:   outputs,
		WhereMask: mask,
		Extras:    extras,
		KwNames:   kwNames,
	}, nil
}

// buildExtras assembles the flat supplemental argument vector: the
// positional extras first, then the kwargs sorted by name so YAML map
// order never leaks into the recorded trace.
func buildExtras(extras []any, kwargs map[string]any) ([]any, []string, error) {
	out := make([]any, 0, len(extras)+len(kwargs))
	for i, v := range extras {
		conv, err := convertArgValue(v)
		if err != nil {
			return nil, nil, fmt.Errorf("extras[%d]: %w", i, err)
		}
		out = append(out, conv)
	}

	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		conv, err := convertArgValue(kwargs[name])
		if err != nil {
			return nil, nil, fmt.Errorf("kwargs.%s: %w", name, err)
		}
		out = append(out, conv)
	}

	return out, names, nil
}

// convertArgValue vets one YAML argument value. Nulls are rejected at
// any depth; everything else passes through as the caller wrote it.
func convertArgValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("null values are not allowed in call arguments")
	case []any:
		conv := make([]any, len(t))
		for i, e := range t {
			c, err := convertArgValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			conv[i] = c
		}
		return conv, nil
	case map[string]any:
		conv := make(map[string]any, len(t))
		for k, e := range t {
			c, err := convertArgValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			conv[k] = c
		}
		return conv, nil
	default:
		return v, nil
	}
}

// checkExpect compares a call's outcome against its expect clause and
// records mismatches on the result.
func checkExpect(i int, expect *ExpectClause, outcome CallOutcome, result *Result) {
	if expect == nil {
		return
	}

	if outcome.Disposition != expect.Disposition {
		result.AddError(fmt.Sprintf(
			"calls[%d] (%s %s): expected disposition %q, got %q",
			i, outcome.Op, outcome.Variant, expect.Disposition, outcome.Disposition,
		))
	}
	if expect.Result != "" && outcome.Result != expect.Result {
		result.AddError(fmt.Sprintf(
			"calls[%d] (%s %s): expected result %q, got %q",
			i, outcome.Op, outcome.Variant, expect.Result, outcome.Result,
		))
	}
	if expect.Error != "" && !strings.Contains(outcome.Err, expect.Error) {
		result.AddError(fmt.Sprintf(
			"calls[%d] (%s %s): error %q does not contain %q",
			i, outcome.Op, outcome.Variant, outcome.Err, expect.Error,
		))
	}
}
