package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"overrule/internal/dispatch"
	"overrule/internal/ir"
)

// Scenario is a declarative conformance test: one universe, a sequence
// of calls to dispatch, and assertions over the recorded resolutions.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Universe    string         `yaml:"universe"`
	CallTokens  []string       `yaml:"call_tokens,omitempty"`
	Calls       []ScenarioCall `yaml:"calls"`
	Assertions  []Assertion    `yaml:"assertions"`
}

// ScenarioCall describes one call to dispatch. Inputs, Outputs, and
// WhereMask name universe types; Extras and Kwargs carry supplemental
// arguments the way a caller would pass them.
type ScenarioCall struct {
	Op        string         `yaml:"op"`
	Variant   string         `yaml:"variant,omitempty"`
	Inputs    []string       `yaml:"inputs"`
	Outputs   []string       `yaml:"outputs,omitempty"`
	WhereMask string         `yaml:"wheremask,omitempty"`
	Extras    []any          `yaml:"extras,omitempty"`
	Kwargs    map[string]any `yaml:"kwargs,omitempty"`
	Expect    *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause states how a call must resolve. Result is compared
// exactly against the rendered handler result; Error is a substring of
// the failure text.
type ExpectClause struct {
	Disposition string `yaml:"disposition"`
	Result      string `yaml:"result,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// Assertion is one check over the rows a scenario recorded. Type selects
// which of the remaining fields are read.
type Assertion struct {
	Type string `yaml:"type"`

	// resolution_recorded
	Op      string `yaml:"op,omitempty"`
	Variant string `yaml:"variant,omitempty"`

	// attempt_order
	Types []string `yaml:"types,omitempty"`

	// attempt_count
	TypeName string `yaml:"type_name,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	// stored_disposition; Disposition is also read by resolution_recorded
	Call        int    `yaml:"call,omitempty"`
	Disposition string `yaml:"disposition,omitempty"`
	Result      string `yaml:"result,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// LoadScenario reads and validates a scenario file. The universe path is
// checked as written; use LoadScenarioWithBasePath to resolve relative
// paths against a directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and validates a scenario file, resolving
// a relative universe path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %q: %w", path, err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %q: %w", path, err)
	}

	if basePath != "" && scenario.Universe != "" && !filepath.IsAbs(scenario.Universe) {
		scenario.Universe = filepath.Join(basePath, scenario.Universe)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", path, err)
	}

	return &scenario, nil
}

// validateScenario checks the structural rules a scenario must satisfy
// before it can run.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Universe == "" {
		return fmt.Errorf("universe is required")
	}
	if _, err := os.Stat(s.Universe); os.IsNotExist(err) {
		return fmt.Errorf("universe file not found: %s", s.Universe)
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required")
	}

	for i, call := range s.Calls {
		if err := validateCall(call); err != nil {
			return fmt.Errorf("calls[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, len(s.Calls)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateCall(call ScenarioCall) error {
	if call.Op == "" {
		return fmt.Errorf("op is required")
	}
	if len(call.Inputs) == 0 {
		return fmt.Errorf("inputs list is required")
	}
	if call.Variant != "" {
		if _, err := dispatch.ParseVariant(call.Variant); err != nil {
			return err
		}
	}
	if call.Expect != nil {
		if call.Expect.Disposition == "" {
			return fmt.Errorf("expect: disposition is required")
		}
		if !ir.ValidResolutionDispositions[call.Expect.Disposition] {
			return fmt.Errorf("expect: invalid disposition %q", call.Expect.Disposition)
		}
	}
	return nil
}

// validateAssertion checks one assertion's fields against its type.
// nCalls bounds the call index of stored_disposition.
func validateAssertion(a Assertion, nCalls int) error {
	switch a.Type {
	case AssertResolutionRecorded:
		if a.Op == "" {
			return fmt.Errorf("op is required for resolution_recorded")
		}
		if a.Variant != "" {
			if _, err := dispatch.ParseVariant(a.Variant); err != nil {
				return err
			}
		}
		if a.Disposition != "" && !ir.ValidResolutionDispositions[a.Disposition] {
			return fmt.Errorf("invalid disposition %q", a.Disposition)
		}

	case AssertAttemptOrder:
		if len(a.Types) == 0 {
			return fmt.Errorf("types list is required for attempt_order")
		}

	case AssertAttemptCount:
		if a.TypeName == "" {
			return fmt.Errorf("type_name is required for attempt_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for attempt_count")
		}

	case AssertStoredDisposition:
		if a.Disposition == "" {
			return fmt.Errorf("disposition is required for stored_disposition")
		}
		if !ir.ValidResolutionDispositions[a.Disposition] {
			return fmt.Errorf("invalid disposition %q", a.Disposition)
		}
		if a.Call < 0 {
			return fmt.Errorf("call must be non-negative for stored_disposition")
		}
		if a.Call >= nCalls {
			return fmt.Errorf("call index %d out of range (scenario has %d calls)", a.Call, nCalls)
		}

	case "":
		return fmt.Errorf("type is required")

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}

	return nil
}
