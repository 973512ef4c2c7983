package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"overrule/internal/dispatch"
	"overrule/internal/store"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Universe string
	Op       string
	Variant  string
	Inputs   []string
	Outputs  []string
	Where    string
	Extras   []string
	Kwargs   []string
	Database string
}

// CallData is the observed outcome of one dispatched call.
type CallData struct {
	Op          string            `json:"op"`
	Variant     string            `json:"variant"`
	InputTypes  []string          `json:"input_types"`
	Handled     bool              `json:"handled"`
	Disposition string            `json:"disposition"`
	Result      string            `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Candidates  []string          `json:"candidates,omitempty"`
	Attempts    []CallAttemptData `json:"attempts,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	ParamOrder  []string          `json:"param_order,omitempty"`
}

// CallAttemptData is one handler invocation inside a dispatched call.
type CallAttemptData struct {
	TypeName    string `json:"type_name"`
	Disposition string `json:"disposition"`
	Error       string `json:"error,omitempty"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Dispatch one operation call against a universe",
		Long: `Dispatch a single operation call and report how it resolved.

Operands are named by their universe type; the resolver collects override
candidates from the inputs, outputs, and where-mask, tries them
most-derived first, and reports the accepted handler's result or the
failure. With --db the resolution and its attempt trail are recorded.

Supplemental argument values parse as int, bool, or string; the literal
NoValue passes the absent-optional sentinel.

Examples:
  overrule call --universe grids.cue --op add --in Grid --in MaskedGrid
  overrule call --universe grids.cue --op add --variant reduce --in MaskedGrid --kw axis=0
  overrule call --universe grids.cue --op mul --in MaskedGrid --out Grid --db trace.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Universe, "universe", "", "path to CUE universe file (required)")
	_ = cmd.MarkFlagRequired("universe")
	cmd.Flags().StringVar(&opts.Op, "op", "", "operation name (required)")
	_ = cmd.MarkFlagRequired("op")
	cmd.Flags().StringVar(&opts.Variant, "variant", "call", "invocation variant (call|outer|reduce|accumulate|reduceat|at)")
	cmd.Flags().StringArrayVar(&opts.Inputs, "in", nil, "input operand type (repeatable, required)")
	_ = cmd.MarkFlagRequired("in")
	cmd.Flags().StringArrayVar(&opts.Outputs, "out", nil, "output operand type (repeatable)")
	cmd.Flags().StringVar(&opts.Where, "where", "", "where-mask operand type")
	cmd.Flags().StringArrayVar(&opts.Extras, "extra", nil, "positional supplemental value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Kwargs, "kw", nil, "keyword supplemental value as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the resolution into this SQLite database")

	return cmd
}

func runCall(opts *CallOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	u, err := LoadUniverse(opts.Universe)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load universe", err)
	}

	capture := &traceCapture{}
	recorders := []dispatch.Recorder{capture}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		rec, err := store.NewRecorder(st, store.WithUniverseHash(u.Hash()))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create recorder", err)
		}
		recorders = append(recorders, rec)
	}

	resolver := dispatch.New(dispatch.WithRecorder(multiRecorder(recorders)))
	u.BindResolver(resolver)

	call, err := buildDispatchCall(u, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid call", err)
	}

	_, _, callErr := resolver.CheckOverride(call)

	tr, ok := capture.last()
	if !ok {
		return NewExitError(ExitCommandError, "no resolution was recorded")
	}

	data := callDataFromTrace(tr)
	if err := outputCall(formatter, data); err != nil {
		return err
	}

	if callErr != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("call failed: %s", tr.Disposition))
	}
	return nil
}

// buildDispatchCall assembles the dispatch call from the command flags.
func buildDispatchCall(u universeSource, opts *CallOptions) (*dispatch.Call, error) {
	op, ok := u.Operation(opts.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", opts.Op)
	}

	variant, err := dispatch.ParseVariant(opts.Variant)
	if err != nil {
		return nil, err
	}

	inputs, err := u.Operands(opts.Inputs...)
	if err != nil {
		return nil, err
	}
	outputs, err := u.Operands(opts.Outputs...)
	if err != nil {
		return nil, err
	}

	var mask dispatch.Operand
	if opts.Where != "" {
		operands, err := u.Operands(opts.Where)
		if err != nil {
			return nil, err
		}
		mask = operands[0]
	}

	extras := make([]any, 0, len(opts.Extras)+len(opts.Kwargs))
	for _, raw := range opts.Extras {
		extras = append(extras, parseArgValue(raw))
	}

	kwNames := make([]string, 0, len(opts.Kwargs))
	for _, raw := range opts.Kwargs {
		name, value, found := strings.Cut(raw, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --kw %q: expected name=value", raw)
		}
		kwNames = append(kwNames, name)
		extras = append(extras, parseArgValue(value))
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

// universeSource is the slice of universe.Universe the call builder needs.
type universeSource interface {
	Operation(name string) (*dispatch.Operation, bool)
	Operands(typeNames ...string) ([]dispatch.Operand, error)
}

// parseArgValue interprets one flag value: int, bool, the NoValue
// sentinel, or a plain string.
func parseArgValue(s string) any {
	if s == "NoValue" {
		return dispatch.NoValue
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// callDataFromTrace renders a dispatch trace as the call command's output.
func callDataFromTrace(tr dispatch.Trace) CallData {
	data := CallData{
		Op:          tr.Op,
		Variant:     tr.Variant,
		InputTypes:  tr.InputTypes,
		Handled:     tr.Disposition == dispatch.DispositionHandled,
		Disposition: string(tr.Disposition),
		Result:      tr.Result,
		Error:       tr.Err,
		Candidates:  tr.Candidates,
	}
	for _, a := range tr.Attempts {
		data.Attempts = append(data.Attempts, CallAttemptData{
			TypeName:    a.TypeName,
			Disposition: string(a.Disposition),
			Error:       a.Err,
		})
	}
	if len(tr.Params) > 0 {
		data.Params = make(map[string]string, len(tr.Params))
		for _, e := range tr.Params {
			data.Params[e.Key] = e.Value
			data.ParamOrder = append(data.ParamOrder, e.Key)
		}
	}
	return data
}

// outputCall renders the call outcome.
func outputCall(formatter *OutputFormatter, data CallData) error {
	if formatter.Format == "json" {
		return formatter.Success(data)
	}

	w := formatter.Writer

	glyph := "✓"
	if data.Error != "" {
		glyph = "✗"
	}
	fmt.Fprintf(w, "%s %s %s(%s) → %s\n", glyph, data.Variant, data.Op,
		strings.Join(data.InputTypes, ", "), data.Disposition)

	if data.Result != "" {
		fmt.Fprintf(w, "  Result: %s\n", data.Result)
	}
	if data.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", data.Error)
	}

	if formatter.Verbose {
		if len(data.Candidates) > 0 {
			fmt.Fprintf(w, "  Candidates: %s\n", strings.Join(data.Candidates, ", "))
		}
		for i, a := range data.Attempts {
			fmt.Fprintf(w, "  Attempt %d: %s → %s\n", i, a.TypeName, a.Disposition)
			if a.Error != "" {
				fmt.Fprintf(w, "    %s\n", a.Error)
			}
		}
		for _, k := range data.ParamOrder {
			fmt.Fprintf(w, "  Param %s=%s\n", k, data.Params[k])
		}
	}

	return nil
}

// traceCapture is an in-memory dispatch.Recorder. Delegated calls record
// their inner resolutions first, so the top-level call's trace is the
// last one captured.
type traceCapture struct {
	traces []dispatch.Trace
}

// Record implements dispatch.Recorder.
func (c *traceCapture) Record(tr dispatch.Trace) {
	c.traces = append(c.traces, tr)
}

// last returns the most recently captured trace.
func (c *traceCapture) last() (dispatch.Trace, bool) {
	if len(c.traces) == 0 {
		return dispatch.Trace{}, false
	}
	return c.traces[len(c.traces)-1], true
}

// multiRecorder fans one trace out to several recorders in order.
type multiRecorder []dispatch.Recorder

// Record implements dispatch.Recorder.
func (m multiRecorder) Record(tr dispatch.Trace) {
	for _, r := range m {
		r.Record(tr)
	}
}
