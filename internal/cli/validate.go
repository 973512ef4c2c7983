package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"overrule/internal/harness"
)

// ValidationIssue is one problem found in a universe or scenario file.
type ValidationIssue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate universe and scenario files",
		Long: `Validate CUE universe files and YAML scenario files.

Each path may be a .cue universe, a .yaml/.yml scenario, or a directory,
which is walked for both kinds. Universes are compiled and checked
against the spec schema; scenarios are parsed strictly and checked for
structural rules. Nothing is executed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := collectValidatableFiles(paths)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid path", err)
	}
	if len(files) == 0 {
		_ = formatter.Error(ErrCodeNoFiles, "no universe or scenario files found", nil)
		return NewExitError(ExitCommandError, "no universe or scenario files found")
	}

	var issues []ValidationIssue
	for _, file := range files {
		switch filepath.Ext(file) {
		case ".cue":
			formatter.VerboseLog("Validating universe: %s", file)
			issues = append(issues, validateUniverseFile(file)...)
		case ".yaml", ".yml":
			formatter.VerboseLog("Validating scenario: %s", file)
			issues = append(issues, validateScenarioFile(file)...)
		}
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, len(files), issues)
	}

	return outputValidateSuccess(formatter, len(files))
}

// collectValidatableFiles expands the argument paths into the universe and
// scenario files they name, in argument order.
func collectValidatableFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path not found: %s", path)
		}
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			switch filepath.Ext(p) {
			case ".cue", ".yaml", ".yml":
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", path, err)
		}
	}
	return files, nil
}

// validateUniverseFile compiles and validates one universe file.
func validateUniverseFile(path string) []ValidationIssue {
	_, errs := LoadUniverseSpec(path)

	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issue := ValidationIssue{Path: path, Code: ErrCodeGeneric, Message: err.Error()}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			issue.Code = loadErr.Code
			issue.Message = loadErr.Message
			if loadErr.Pos.IsValid() {
				issue.Line = loadErr.Pos.Line()
			}
		}
		issues = append(issues, issue)
	}
	return issues
}

// validateScenarioFile parses and structurally checks one scenario file.
// The scenario's universe path resolves against the scenario's directory,
// matching how the test command runs it.
func validateScenarioFile(path string) []ValidationIssue {
	_, err := harness.LoadScenarioWithBasePath(path, filepath.Dir(path))
	if err != nil {
		return []ValidationIssue{{
			Path:    path,
			Code:    ErrCodeInvalidScenario,
			Message: err.Error(),
		}}
	}
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d file(s) valid\n", files)
	return nil
}

// outputValidationIssues outputs the collected validation problems.
func outputValidationIssues(formatter *OutputFormatter, files int, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Files:  files,
			Issues: issues,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.Path, issue.Line)
		} else {
			fmt.Fprintln(formatter.Writer, issue.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
