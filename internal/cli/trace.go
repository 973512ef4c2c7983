package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"overrule/internal/ir"
	"overrule/internal/queryir"
	"overrule/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database    string
	Op          string
	Variant     string
	Disposition string
	TypeName    string
}

// TraceRow is one recorded resolution in the trace listing.
type TraceRow struct {
	Seq         int64    `json:"seq"`
	CallToken   string   `json:"call_token"`
	Op          string   `json:"op"`
	Variant     string   `json:"variant"`
	InputTypes  []string `json:"input_types"`
	Candidates  []string `json:"candidates,omitempty"`
	Disposition string   `json:"disposition"`
	Result      string   `json:"result,omitempty"`
	Error       string   `json:"error,omitempty"`
	Attempts    []string `json:"attempts,omitempty"` // "TypeName:disposition" in order
}

// TraceListResult holds the complete trace output.
type TraceListResult struct {
	Rows   []TraceRow       `json:"rows"`
	Counts map[string]int64 `json:"counts"` // resolutions per disposition, whole log
	Total  int              `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List recorded resolutions",
		Long: `List resolutions recorded in a trace database.

Rows come back in recording order. Filters conjoin: a row must match
every filter given. --type matches resolutions whose attempt trail
actually invoked the named type's handler, not merely carried an operand
of that type.

Examples:
  overrule trace --db trace.db
  overrule trace --db trace.db --op add --disposition handled
  overrule trace --db trace.db --type MaskedGrid --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Op, "op", "", "filter by operation name")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "filter by invocation variant")
	cmd.Flags().StringVar(&opts.Disposition, "disposition", "", "filter by terminal disposition")
	cmd.Flags().StringVar(&opts.TypeName, "type", "", "filter by invoked handler type")

	return cmd
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	filter := buildTraceFilter(opts)
	if filter != nil {
		validation := queryir.Validate(filter)
		for _, warning := range validation.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	resolutions, err := st.FindResolutions(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query resolutions", err)
	}

	counts, err := st.CountByDisposition(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count dispositions", err)
	}

	result := TraceListResult{
		Rows:   make([]TraceRow, 0, len(resolutions)),
		Counts: counts,
		Total:  len(resolutions),
	}
	for _, res := range resolutions {
		row, err := buildTraceRow(ctx, st, res)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read attempt trail", err)
		}
		result.Rows = append(result.Rows, row)
	}

	if opts.Format == "json" {
		return outputTraceListJSON(cmd, result)
	}
	return outputTraceListText(cmd, result, opts.Verbose)
}

// buildTraceFilter conjoins the non-empty filter flags. Nil means "match
// everything".
func buildTraceFilter(opts *TraceOptions) queryir.Filter {
	var filters []queryir.Filter
	if opts.Op != "" {
		filters = append(filters, queryir.ByOp{Op: opts.Op})
	}
	if opts.Variant != "" {
		filters = append(filters, queryir.ByVariant{Variant: opts.Variant})
	}
	if opts.Disposition != "" {
		filters = append(filters, queryir.ByDisposition{Disposition: opts.Disposition})
	}
	if opts.TypeName != "" {
		filters = append(filters, queryir.ByType{TypeName: opts.TypeName})
	}

	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	default:
		return queryir.And{Filters: filters}
	}
}

// buildTraceRow renders one stored resolution with its attempt trail.
func buildTraceRow(ctx context.Context, st *store.Store, res ir.Resolution) (TraceRow, error) {
	attempts, err := st.ReadAttempts(ctx, res.ID)
	if err != nil {
		return TraceRow{}, err
	}

	row := TraceRow{
		Seq:         res.Seq,
		CallToken:   res.CallToken,
		Op:          res.Op,
		Variant:     res.Variant,
		InputTypes:  res.InputTypes,
		Candidates:  res.Candidates,
		Disposition: res.Disposition,
		Result:      res.Result,
		Error:       res.Error,
	}
	for _, att := range attempts {
		row.Attempts = append(row.Attempts, fmt.Sprintf("%s:%s", att.TypeName, att.Disposition))
	}
	return row, nil
}

// outputTraceListJSON outputs the trace listing as JSON.
func outputTraceListJSON(cmd *cobra.Command, result TraceListResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceListText outputs the trace listing as text.
func outputTraceListText(cmd *cobra.Command, result TraceListResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Rows) == 0 {
		fmt.Fprintln(w, "No resolutions matched.")
	}

	for _, row := range result.Rows {
		fmt.Fprintf(w, "[%d] %s %s(%s) → %s\n",
			row.Seq, row.Variant, row.Op, strings.Join(row.InputTypes, ", "), row.Disposition)
		if row.Result != "" {
			fmt.Fprintf(w, "     Result: %s\n", row.Result)
		}
		if row.Error != "" {
			fmt.Fprintf(w, "     Error: %s\n", row.Error)
		}
		if verbose {
			fmt.Fprintf(w, "     Token: %s\n", truncateID(row.CallToken))
			if len(row.Candidates) > 0 {
				fmt.Fprintf(w, "     Candidates: %s\n", strings.Join(row.Candidates, ", "))
			}
			if len(row.Attempts) > 0 {
				fmt.Fprintf(w, "     Attempts: %s\n", strings.Join(row.Attempts, " "))
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d resolution(s) matched\n", result.Total)

	if len(result.Counts) > 0 {
		dispositions := make([]string, 0, len(result.Counts))
		for d := range result.Counts {
			dispositions = append(dispositions, d)
		}
		sort.Strings(dispositions)

		parts := make([]string, 0, len(dispositions))
		for _, d := range dispositions {
			parts = append(parts, fmt.Sprintf("%s=%d", d, result.Counts[d]))
		}
		fmt.Fprintf(w, "Log totals: %s\n", strings.Join(parts, ", "))
	}

	return nil
}

// truncateID truncates a long token or ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
