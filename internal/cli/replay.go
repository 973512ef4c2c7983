package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
	"overrule/internal/store"
	"overrule/internal/universe"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	Universe  string
	CallToken string // optional - specific call only
}

// ReplayCallResult holds the replay outcome for a single recorded call.
type ReplayCallResult struct {
	CallToken     string   `json:"call_token"`
	Op            string   `json:"op"`
	Variant       string   `json:"variant"`
	Deterministic bool     `json:"deterministic"`
	Divergences   []string `json:"divergences,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Calls            []ReplayCallResult `json:"calls"`
	TotalCalls       int                `json:"total_calls"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-dispatch recorded calls and verify determinism",
		Long: `Re-dispatch recorded calls against a universe and compare outcomes.

Each recorded resolution is rebuilt into a live call and dispatched
again. The fresh trail must reproduce the stored one field for field:
same candidates, same attempt order, same dispositions, same result.
Divergence means the universe no longer matches the one that recorded
the log, or dispatch itself became non-deterministic.

Nothing is written: the stored log stays the reference.

Exit codes:
  0 - Every replayed call reproduced its stored outcome
  1 - Divergence detected
  2 - Command error (database not found, etc.)

Examples:
  overrule replay --db trace.db --universe grids.cue
  overrule replay --db trace.db --universe grids.cue --token 0192a1b2-...
  overrule replay --db trace.db --universe grids.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Universe, "universe", "", "path to CUE universe file (required)")
	_ = cmd.MarkFlagRequired("universe")
	cmd.Flags().StringVar(&opts.CallToken, "token", "", "replay one recorded call token only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	u, err := LoadUniverse(opts.Universe)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load universe", err)
	}

	var tokens []string
	if opts.CallToken != "" {
		tokens = []string{opts.CallToken}
	} else {
		tokens, err = st.ListCallTokens(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list call tokens", err)
		}
	}

	if len(tokens) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{
				Calls:            []ReplayCallResult{},
				TotalCalls:       0,
				AllDeterministic: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded calls found in database.")
		return nil
	}

	result := ReplayResult{
		Calls:            make([]ReplayCallResult, 0, len(tokens)),
		TotalCalls:       len(tokens),
		AllDeterministic: true,
	}

	for _, token := range tokens {
		callResult := replayCall(ctx, st, u, token)
		result.Calls = append(result.Calls, callResult)
		if !callResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayCall re-dispatches one recorded call and compares the fresh trail
// against the stored one. A failure to rebuild the call reports as a
// non-deterministic result rather than aborting the whole run.
func replayCall(ctx context.Context, st *store.Store, u *universe.Universe, token string) ReplayCallResult {
	res, err := st.ReadResolutionByToken(ctx, token)
	if err != nil {
		return ReplayCallResult{
			CallToken:     token,
			Deterministic: false,
			Error:         fmt.Sprintf("failed to read resolution: %v", err),
		}
	}

	attempts, err := st.ReadAttempts(ctx, res.ID)
	if err != nil {
		return ReplayCallResult{
			CallToken:     token,
			Op:            res.Op,
			Variant:       res.Variant,
			Deterministic: false,
			Error:         fmt.Sprintf("failed to read attempts: %v", err),
		}
	}

	capture := &traceCapture{}
	resolver := dispatch.New(dispatch.WithRecorder(capture))
	u.BindResolver(resolver)

	call, err := rebuildCall(u, res)
	if err != nil {
		return ReplayCallResult{
			CallToken:     token,
			Op:            res.Op,
			Variant:       res.Variant,
			Deterministic: false,
			Error:         fmt.Sprintf("failed to rebuild call: %v", err),
		}
	}

	// The call's own error is part of the stored outcome; divergence
	// detection below covers it.
	_, _, _ = resolver.CheckOverride(call)

	tr, ok := capture.last()
	if !ok {
		return ReplayCallResult{
			CallToken:     token,
			Op:            res.Op,
			Variant:       res.Variant,
			Deterministic: false,
			Error:         "replay produced no trace",
		}
	}

	divs := store.CompareTrail(res, attempts, tr)
	callResult := ReplayCallResult{
		CallToken:     token,
		Op:            res.Op,
		Variant:       res.Variant,
		Deterministic: len(divs) == 0,
	}
	for _, d := range divs {
		callResult.Divergences = append(callResult.Divergences, d.String())
	}
	return callResult
}

// rebuildCall reconstructs a dispatch call from its stored resolution.
//
// Operands rebuild from the stored type names. Parameters rebuild from
// the stored key/value pairs as keyword arguments in their stored order,
// so renormalization reproduces the recorded parameter set: the "out"
// entry keeps its position and is overwritten by the forced output
// sequence, and stored values replay as their rendered strings, which
// render identically on the second pass.
func rebuildCall(u *universe.Universe, res ir.Resolution) (*dispatch.Call, error) {
	op, ok := u.Operation(res.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", res.Op)
	}

	variant, err := dispatch.ParseVariant(res.Variant)
	if err != nil {
		return nil, err
	}

	inputs, err := u.Operands(res.InputTypes...)
	if err != nil {
		return nil, err
	}
	outputs, err := u.Operands(res.OutputTypes...)
	if err != nil {
		return nil, err
	}

	var mask dispatch.Operand
	if res.WhereType != "" {
		operands, err := u.Operands(res.WhereType)
		if err != nil {
			return nil, err
		}
		mask = operands[0]
	}

	var extras []any
	var kwNames []string
	for i, elem := range res.Params {
		obj, ok := elem.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("params[%d]: not a key/value object", i)
		}
		key, kOK := obj["key"].(ir.String)
		value, vOK := obj["value"].(ir.String)
		if !kOK || !vOK {
			return nil, fmt.Errorf("params[%d]: malformed key/value object", i)
		}
		kwNames = append(kwNames, string(key))
		extras = append(extras, string(value))
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

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay diverged from the stored log",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Divergence = exit code 1
		return NewExitError(ExitFailure, "replay diverged from the stored log")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d call(s)\n", result.TotalCalls)
	fmt.Fprintln(w)

	for _, call := range result.Calls {
		status := "✓"
		if !call.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s %s %s (%s)\n", status, call.Variant, call.Op, truncateID(call.CallToken))

		if call.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", call.Error)
		}
		if verbose || !call.Deterministic {
			for _, d := range call.Divergences {
				fmt.Fprintf(w, "  Divergence: %s\n", d)
			}
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All replayed calls reproduced their stored outcomes")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from the stored log")
	// Divergence = exit code 1
	return NewExitError(ExitFailure, "replay diverged from the stored log")
}
