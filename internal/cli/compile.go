package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"overrule/internal/universe"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics for a compiled universe.
type CompilationStats struct {
	Operations    int
	Types         int
	ScriptedTypes int
	DisabledTypes int
	Behaviors     int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <universe.cue>",
		Short: "Compile a CUE universe file to its canonical spec",
		Long: `Compile a CUE universe file and print the resulting spec as JSON.

The compiler parses the universe's operation table, type forest, and
scripted behaviors, validates the spec, and reports every problem in one
pass. The spec's content-addressed hash identifies the universe in
recorded resolutions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, universePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Compiling universe: %s", universePath)

	spec, loadErrors := LoadUniverseSpec(universePath)
	if spec == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	hash, err := spec.Hash()
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing spec: %v", err))
	}

	stats := calculateStats(spec)

	if opts.Output != "" {
		if err := writeSpecToFile(spec, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, spec, hash, stats, opts.Output)
}

// calculateStats computes summary statistics for a compiled spec.
func calculateStats(spec *universe.Spec) CompilationStats {
	stats := CompilationStats{
		Operations: len(spec.Operations),
		Types:      len(spec.Types),
	}
	for _, t := range spec.Types {
		switch t.Override {
		case universe.ModeScripted:
			stats.ScriptedTypes++
		case universe.ModeDisabled:
			stats.DisabledTypes++
		}
		stats.Behaviors += len(t.Behaviors)
	}
	return stats
}

// compileData is the JSON payload of a successful compile.
type compileData struct {
	UniverseHash string         `json:"universe_hash"`
	Spec         *universe.Spec `json:"spec"`
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, spec *universe.Spec, hash string, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(compileData{UniverseHash: hash, Spec: spec})
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d operation(s), %d type(s)\n\n",
		stats.Operations, stats.Types)
	fmt.Fprintf(formatter.Writer, "Universe: %s\n", hash)
	fmt.Fprintf(formatter.Writer, "  Scripted types: %d (%d behavior(s))\n", stats.ScriptedTypes, stats.Behaviors)
	fmt.Fprintf(formatter.Writer, "  Disabled types: %d\n", stats.DisabledTypes)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote spec to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseLoadError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseLoadError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeSpecToFile writes the compiled spec to a file as indented JSON.
func writeSpecToFile(spec *universe.Spec, filename string) error {
	// Indented JSON for readability; canonical JSON is used only for
	// the universe hash.
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling spec: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
