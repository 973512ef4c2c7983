package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"overrule/internal/ir"
)

// Assertion type identifiers, as written in scenario YAML.
const (
	AssertResolutionRecorded = "resolution_recorded"
	AssertAttemptOrder       = "attempt_order"
	AssertAttemptCount       = "attempt_count"
	AssertStoredDisposition  = "stored_disposition"
)

// AssertionError describes one failed assertion with enough context to
// diagnose it without re-running the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Diff     string
}

// Error implements the error interface with a multiline report.
func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assertion %s failed:\n", e.Type)
	fmt.Fprintf(&b, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  actual:   %s", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&b, "\n  diff (-want +got):\n%s", indent(e.Diff, "    "))
	}
	return b.String()
}

// EvaluateAssertions checks every assertion against a run's result and
// returns one message per failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertResolutionRecorded:
			err = assertResolutionRecorded(result, a)
		case AssertAttemptOrder:
			err = assertAttemptOrder(result, a)
		case AssertAttemptCount:
			err = assertAttemptCount(result, a)
		case AssertStoredDisposition:
			err = assertStoredDisposition(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertResolutionRecorded passes when any stored resolution matches the
// assertion's op, and its variant and disposition when those are set.
func assertResolutionRecorded(result *Result, a Assertion) error {
	for _, res := range result.Resolutions {
		if res.Op != a.Op {
			continue
		}
		if a.Variant != "" && res.Variant != a.Variant {
			continue
		}
		if a.Disposition != "" && res.Disposition != a.Disposition {
			continue
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertResolutionRecorded,
		Expected: describeResolutionWant(a),
		Actual:   renderResolutions(result.Resolutions),
	}
}

// assertAttemptOrder passes when the assertion's types appear as a
// subsequence of the recorded attempt trail, taken in seq order across
// the whole run.
func assertAttemptOrder(result *Result, a Assertion) error {
	got := make([]string, len(result.Attempts))
	for i, at := range result.Attempts {
		got[i] = at.TypeName
	}

	next := 0
	for _, name := range got {
		if next < len(a.Types) && name == a.Types[next] {
			next++
		}
	}
	if next == len(a.Types) {
		return nil
	}

	return &AssertionError{
		Type:     AssertAttemptOrder,
		Expected: fmt.Sprintf("attempts containing %v in order", a.Types),
		Actual:   fmt.Sprintf("attempts %v", got),
		Diff:     cmp.Diff(a.Types, got),
	}
}

// assertAttemptCount passes when exactly count attempts were recorded
// for the named type.
func assertAttemptCount(result *Result, a Assertion) error {
	count := 0
	for _, at := range result.Attempts {
		if at.TypeName == a.TypeName {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	return &AssertionError{
		Type:     AssertAttemptCount,
		Expected: fmt.Sprintf("%d attempt(s) by %s", a.Count, a.TypeName),
		Actual:   fmt.Sprintf("%d attempt(s) by %s", count, a.TypeName),
	}
}

// assertStoredDisposition passes when the resolution recorded for the
// call at index Call carries the asserted disposition, and the asserted
// result and error text when those are set. Error matches by substring.
func assertStoredDisposition(result *Result, a Assertion) error {
	if a.Call >= len(result.Outcomes) {
		return fmt.Errorf("call index %d out of range (scenario ran %d calls)", a.Call, len(result.Outcomes))
	}
	outcome := result.Outcomes[a.Call]

	res, ok := findResolution(result.Resolutions, outcome.ResolutionID)
	if !ok {
		return fmt.Errorf("no stored resolution for call %d", a.Call)
	}

	if res.Disposition != a.Disposition {
		return &AssertionError{
			Type:     AssertStoredDisposition,
			Expected: fmt.Sprintf("call %d stored with disposition %q", a.Call, a.Disposition),
			Actual:   fmt.Sprintf("disposition %q", res.Disposition),
		}
	}
	if a.Result != "" && res.Result != a.Result {
		return &AssertionError{
			Type:     AssertStoredDisposition,
			Expected: fmt.Sprintf("call %d stored with result %q", a.Call, a.Result),
			Actual:   fmt.Sprintf("result %q", res.Result),
		}
	}
	if a.Error != "" && !strings.Contains(res.Error, a.Error) {
		return &AssertionError{
			Type:     AssertStoredDisposition,
			Expected: fmt.Sprintf("call %d stored with error containing %q", a.Call, a.Error),
			Actual:   fmt.Sprintf("error %q", res.Error),
		}
	}

	return nil
}

func findResolution(rows []ir.Resolution, id string) (ir.Resolution, bool) {
	for _, r := range rows {
		if r.ID == id {
			return r, true
		}
	}
	return ir.Resolution{}, false
}

func describeResolutionWant(a Assertion) string {
	parts := []string{fmt.Sprintf("a resolution with op %q", a.Op)}
	if a.Variant != "" {
		parts = append(parts, fmt.Sprintf("variant %q", a.Variant))
	}
	if a.Disposition != "" {
		parts = append(parts, fmt.Sprintf("disposition %q", a.Disposition))
	}
	return strings.Join(parts, ", ")
}

// renderResolutions summarizes the stored rows for failure messages.
func renderResolutions(rows []ir.Resolution) string {
	if len(rows) == 0 {
		return "no resolutions were recorded"
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s %s -> %s", r.Op, r.Variant, r.Disposition)
	}
	return strings.Join(lines, "; ")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
