package harness

import "overrule/internal/ir"

// CallOutcome is the observed result of one scenario call. Disposition
// and Result come from the resolution row the call recorded; Err is the
// error the caller saw, when any.
type CallOutcome struct {
	Op           string
	Variant      string
	InputTypes   []string
	Handled      bool
	Disposition  string
	Result       string
	Err          string
	ResolutionID string
}

// Result is the outcome of one scenario run: what each call resolved to,
// every row the run recorded, and the accumulated failure messages.
type Result struct {
	Pass         bool
	UniverseHash string
	Outcomes     []CallOutcome
	Resolutions  []ir.Resolution
	Attempts     []ir.Attempt
	Errors       []string
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failure message and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}
