package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"overrule/internal/compiler"
	"overrule/internal/universe"
)

// LoadError represents an error that occurred while loading a universe.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadUniverseSpec reads one CUE universe file, compiles it, and validates
// the resulting spec. All errors are collected, not fail-fast, so a single
// run reports every problem in the file.
func LoadUniverseSpec(path string) (*universe.Spec, []error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("universe file not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error reading universe file: %v", err)}}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, []error{cueLoadError(err)}
	}

	uniValue := value.LookupPath(cue.ParsePath("universe"))
	if !uniValue.Exists() {
		return nil, []error{&LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("no 'universe' struct found in %s", path),
		}}
	}

	spec, err := compiler.CompileUniverse(uniValue)
	if err != nil {
		return nil, []error{convertCompileError(err, path)}
	}

	var errs []error
	for _, ve := range spec.Validate() {
		errs = append(errs, &LoadError{
			Code:    MapFieldToErrorCode(ve.Field),
			Message: ve.Error(),
		})
	}
	return spec, errs
}

// LoadUniverse loads a universe file and builds the runtime Universe,
// failing on the first error.
func LoadUniverse(path string) (*universe.Universe, error) {
	spec, errs := LoadUniverseSpec(path)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return universe.New(spec)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// cueLoadError converts a CUE build error to a LoadError, lifting the
// first source position out of the SDK error when one exists.
func cueLoadError(err error) *LoadError {
	le := &LoadError{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("building CUE value: %v", err),
	}
	errs := cueerrors.Errors(err)
	if len(errs) > 0 {
		if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
			le.Pos = positions[0]
		}
	}
	return le
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, path string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", path, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No scenario/universe files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Universe validation errors
	ErrCodeInvalidOperation = "E101" // Bad operation arity
	ErrCodeInvalidType      = "E102" // Bad type declaration (override mode, parent)
	ErrCodeInvalidBehavior  = "E103" // Bad scripted behavior
	ErrCodeInvalidValue     = "E104" // Invalid value kind (e.g. float)

	// Scenario validation errors
	ErrCodeInvalidScenario = "E110" // Malformed scenario file
)

// MapFieldToErrorCode maps a compiler or validation error field to an
// error code. Fields use dotted paths, so matching is by path segment.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "":
		return ErrCodeGeneric
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.Contains(field, "behaviors"):
		return ErrCodeInvalidBehavior
	case field == "value" || strings.HasSuffix(field, ".value") || field == "type":
		return ErrCodeInvalidValue
	case strings.HasPrefix(field, "operations"):
		return ErrCodeInvalidOperation
	case strings.HasPrefix(field, "types"):
		return ErrCodeInvalidType
	default:
		return ErrCodeGeneric
	}
}
