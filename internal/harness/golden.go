package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"overrule/internal/ir"
)

// TraceSnapshot captures what a scenario run recorded, for golden file
// comparison: every resolution row and its attempt trail, in seq order.
type TraceSnapshot struct {
	ScenarioName string
	Resolutions  []ir.Resolution
	Attempts     []ir.Attempt
}

// toCanonicalObject renders the snapshot for canonical JSON
// serialization. Empty optional columns are dropped so the golden shows
// only what the run actually recorded. Version stamps and the universe
// hash stay out: goldens pin dispatch behavior, not build identity.
func (s *TraceSnapshot) toCanonicalObject() map[string]any {
	resolutions := make([]any, len(s.Resolutions))
	for i, r := range s.Resolutions {
		row := map[string]any{
			"id":          r.ID,
			"call_token":  r.CallToken,
			"op":          r.Op,
			"variant":     r.Variant,
			"input_types": toAnySlice(r.InputTypes),
			"disposition": r.Disposition,
			"seq":         r.Seq,
		}
		if len(r.OutputTypes) > 0 {
			row["output_types"] = toAnySlice(r.OutputTypes)
		}
		if r.WhereType != "" {
			row["where_type"] = r.WhereType
		}
		if len(r.Candidates) > 0 {
			row["candidates"] = toAnySlice(r.Candidates)
		}
		if len(r.Params) > 0 {
			row["params"] = r.Params
		}
		if r.Result != "" {
			row["result"] = r.Result
		}
		if r.Error != "" {
			row["error"] = r.Error
		}
		resolutions[i] = row
	}

	attempts := make([]any, len(s.Attempts))
	for i, at := range s.Attempts {
		row := map[string]any{
			"resolution_id": at.ResolutionID,
			"ordinal":       at.Ordinal,
			"type_name":     at.TypeName,
			"disposition":   at.Disposition,
			"seq":           at.Seq,
		}
		if at.Error != "" {
			row["error"] = at.Error
		}
		attempts[i] = row
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"resolutions":   resolutions,
		"attempts":      attempts,
	}
}

// RunWithGolden executes a scenario and compares its recorded rows
// against testdata/golden/{scenario.Name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result's recorded rows
// against the named golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Resolutions:  result.Resolutions,
		Attempts:     result.Attempts,
	}

	snapshotJSON, err := ir.MarshalCanonical(snapshot.toCanonicalObject())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshotJSON)

	return nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
