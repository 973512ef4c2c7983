package ir

import "fmt"

// Resolution is the stored record of one override resolution: which call
// was dispatched, which candidates were found, and how it ended. The
// per-handler trail lives in Attempt records keyed by the resolution ID.
type Resolution struct {
	ID           string   `json:"id"` // Content-addressed hash
	CallToken    string   `json:"call_token"`
	Op           string   `json:"op"`
	Variant      string   `json:"variant"`
	InputTypes   []string `json:"input_types"`
	OutputTypes  []string `json:"output_types,omitempty"`
	WhereType    string   `json:"where_type,omitempty"`
	Candidates   []string `json:"candidates,omitempty"` // Collection order
	Params       Array    `json:"params,omitempty"`     // Ordered key/value objects
	Disposition  string   `json:"disposition"`
	Result       string   `json:"result,omitempty"` // Rendered handler result
	Error        string   `json:"error,omitempty"`
	Seq          int64    `json:"seq"` // Logical clock
	UniverseHash string   `json:"universe_hash,omitempty"`
	EngineVer    string   `json:"engine_version"`
	IRVer        string   `json:"ir_version"`
}

// Attempt is the stored record of one handler invocation inside a
// resolution. (resolution_id, ordinal) is unique.
type Attempt struct {
	ResolutionID string `json:"resolution_id"`
	Ordinal      int64  `json:"ordinal"` // Zero-based invocation order
	TypeName     string `json:"type_name"`
	Disposition  string `json:"disposition"`
	Error        string `json:"error,omitempty"`
	Seq          int64  `json:"seq"`
}

// ValidResolutionDispositions defines the allowed terminal states of a
// resolution record.
var ValidResolutionDispositions = map[string]bool{
	"default":     true,
	"handled":     true,
	"unsupported": true,
	"unhandled":   true,
	"invalid":     true,
	"failed":      true,
}

// ValidAttemptDispositions defines the allowed outcomes of one attempt.
var ValidAttemptDispositions = map[string]bool{
	"accepted": true,
	"declined": true,
	"failed":   true,
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Resolution against schema rules.
// Returns all errors, not fail-fast.
func (r *Resolution) Validate() []ValidationError {
	var errs []ValidationError

	if r.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "id is required"})
	}
	if r.Op == "" {
		errs = append(errs, ValidationError{Field: "op", Message: "op is required"})
	}
	if r.Variant == "" {
		errs = append(errs, ValidationError{Field: "variant", Message: "variant is required"})
	}
	if !ValidResolutionDispositions[r.Disposition] {
		errs = append(errs, ValidationError{
			Field:   "disposition",
			Message: fmt.Sprintf("invalid disposition %q", r.Disposition),
		})
	}
	if len(r.Candidates) > 0 && r.Disposition == "default" {
		errs = append(errs, ValidationError{
			Field:   "disposition",
			Message: "default disposition cannot carry candidates",
		})
	}

	return errs
}

// Validate checks an Attempt against schema rules.
// Returns all errors, not fail-fast.
func (a *Attempt) Validate() []ValidationError {
	var errs []ValidationError

	if a.ResolutionID == "" {
		errs = append(errs, ValidationError{Field: "resolution_id", Message: "resolution_id is required"})
	}
	if a.Ordinal < 0 {
		errs = append(errs, ValidationError{Field: "ordinal", Message: "ordinal must be non-negative"})
	}
	if a.TypeName == "" {
		errs = append(errs, ValidationError{Field: "type_name", Message: "type_name is required"})
	}
	if !ValidAttemptDispositions[a.Disposition] {
		errs = append(errs, ValidationError{
			Field:   "disposition",
			Message: fmt.Sprintf("invalid disposition %q", a.Disposition),
		})
	}
	if a.Disposition == "failed" && a.Error == "" {
		errs = append(errs, ValidationError{Field: "error", Message: "failed attempts must carry an error"})
	}

	return errs
}

// ParamsArray renders ordered key/value pairs into the Array form stored
// on a Resolution. Order is preserved element by element.
func ParamsArray(keys, values []string) Array {
	if len(keys) == 0 {
		return nil
	}
	arr := make(Array, len(keys))
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		arr[i] = Object{"key": String(k), "value": String(v)}
	}
	return arr
}
