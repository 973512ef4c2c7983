package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"overrule/internal/dispatch"
	"overrule/internal/universe"
)

const (
	replHistoryFile = ".overrule_history"
	replPrompt      = "overrule> "
	replBanner      = "overrule REPL. Ctrl+D to exit, help for commands."
	replHelp        = `Commands:
  help                       Show this help
  ops                        List the universe's operations
  types                      List the universe's types
  type <name>                Show one type's mode, parent, and behaviors
  call <op> <in>...          Dispatch <op> on input operand types
  call <op>/<variant> <in>...  Same, under an invocation variant
  quit / exit                Exit the REPL`
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Universe string
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Explore a universe interactively",
		Long: `Explore a universe interactively.

Loads the universe once and keeps a single resolver alive across the
session, so repeated calls are cheap to try. Line history persists in
` + replHistoryFile + ` in the home directory.

Examples:
  overrule repl --universe grids.cue`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Universe, "universe", "", "path to CUE universe file (required)")
	_ = cmd.MarkFlagRequired("universe")

	return cmd
}

func runRepl(opts *ReplOptions, cmd *cobra.Command) error {
	u, err := LoadUniverse(opts.Universe)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load universe", err)
	}

	capture := &traceCapture{}
	resolver := dispatch.New(dispatch.WithRecorder(capture))
	u.BindResolver(resolver)

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, replBanner)
	fmt.Fprintf(w, "Universe: %s (%s)\n", opts.Universe, truncateID(u.Hash()))

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(replCompleter(u))

	histPath := replHistoryPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}

	session := &replSession{u: u, resolver: resolver, capture: capture, w: w}

	for {
		line, err := ln.Prompt(replPrompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(w)
			break
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "read failed", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if done := session.eval(line); done {
			break
		}
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}

	return nil
}

// replHistoryPath returns the history file path, or "" when no home
// directory is available.
func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, replHistoryFile)
}

// replCompleter completes command words, operation names, and type names.
func replCompleter(u *universe.Universe) liner.Completer {
	commands := []string{"help", "ops", "types", "type ", "call ", "quit", "exit"}

	return func(line string) []string {
		fields := strings.Fields(line)
		if len(fields) <= 1 && !strings.HasSuffix(line, " ") {
			var out []string
			for _, c := range commands {
				if strings.HasPrefix(c, line) {
					out = append(out, c)
				}
			}
			return out
		}

		// Complete the trailing word against ops (for call) or types.
		last := ""
		if !strings.HasSuffix(line, " ") {
			last = fields[len(fields)-1]
		}
		prefix := strings.TrimSuffix(line, last)

		// The word after "call" is an operation; every later word is a type.
		pool := u.TypeNames()
		if fields[0] == "call" && len(fields) == 2 && last != "" {
			pool = u.OperationNames()
		}

		var out []string
		for _, name := range pool {
			if strings.HasPrefix(name, last) {
				out = append(out, prefix+name)
			}
		}
		return out
	}
}

// replSession evaluates one command line at a time against a live universe.
type replSession struct {
	u        *universe.Universe
	resolver *dispatch.Dispatcher
	capture  *traceCapture
	w        io.Writer
}

// eval runs one line. The returned bool means "exit the loop".
func (s *replSession) eval(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.w, replHelp)
	case "ops":
		s.printOps()
	case "types":
		s.printTypes()
	case "type":
		if len(fields) != 2 {
			fmt.Fprintln(s.w, "usage: type <name>")
			break
		}
		s.printType(fields[1])
	case "call":
		if len(fields) < 3 {
			fmt.Fprintln(s.w, "usage: call <op>[/<variant>] <in-type>...")
			break
		}
		s.call(fields[1], fields[2:])
	default:
		fmt.Fprintf(s.w, "unknown command %q (try help)\n", fields[0])
	}
	return false
}

func (s *replSession) printOps() {
	for _, name := range s.u.OperationNames() {
		op, _ := s.u.Operation(name)
		fmt.Fprintf(s.w, "  %s (nin=%d nout=%d)\n", name, op.NIn, op.NOut)
	}
}

func (s *replSession) printTypes() {
	for _, name := range s.u.TypeNames() {
		t, _ := s.u.Type(name)
		line := fmt.Sprintf("  %s [%s]", name, t.Mode())
		if p := t.Parent(); p != nil {
			line += " <- " + p.Name()
		}
		fmt.Fprintln(s.w, line)
	}
}

func (s *replSession) printType(name string) {
	t, ok := s.u.Type(name)
	if !ok {
		fmt.Fprintf(s.w, "unknown type %q\n", name)
		return
	}

	fmt.Fprintf(s.w, "%s\n", t.Name())
	fmt.Fprintf(s.w, "  Mode: %s\n", t.Mode())
	if p := t.Parent(); p != nil {
		fmt.Fprintf(s.w, "  Parent: %s\n", p.Name())
	}

	spec := s.u.Spec().Types[name]
	if len(spec.Behaviors) == 0 {
		return
	}
	ops := make([]string, 0, len(spec.Behaviors))
	for op := range spec.Behaviors {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		b := spec.Behaviors[op]
		switch b.Kind {
		case universe.KindDelegate:
			fmt.Fprintf(s.w, "  %s: %s -> %s\n", op, b.Kind, b.Op)
		case universe.KindReturn:
			fmt.Fprintf(s.w, "  %s: %s %v\n", op, b.Kind, b.Value)
		case universe.KindError:
			fmt.Fprintf(s.w, "  %s: %s %q\n", op, b.Kind, b.Message)
		default:
			fmt.Fprintf(s.w, "  %s: %s\n", op, b.Kind)
		}
	}
}

// call dispatches op on the named input types and prints the trace the
// way the call command does.
func (s *replSession) call(opSpec string, inputNames []string) {
	opName, variantName, found := strings.Cut(opSpec, "/")
	if !found {
		variantName = "call"
	}

	op, ok := s.u.Operation(opName)
	if !ok {
		fmt.Fprintf(s.w, "unknown operation %q\n", opName)
		return
	}
	variant, err := dispatch.ParseVariant(variantName)
	if err != nil {
		fmt.Fprintln(s.w, err)
		return
	}
	inputs, err := s.u.Operands(inputNames...)
	if err != nil {
		fmt.Fprintln(s.w, err)
		return
	}

	_, _, callErr := s.resolver.CheckOverride(&dispatch.Call{
		Op:      op,
		Variant: variant,
		Inputs:  inputs,
	})

	tr, ok := s.capture.last()
	if !ok {
		fmt.Fprintln(s.w, "no resolution was recorded")
		return
	}

	data := callDataFromTrace(tr)
	glyph := "✓"
	if callErr != nil {
		glyph = "✗"
	}
	fmt.Fprintf(s.w, "%s %s %s(%s) → %s\n", glyph, data.Variant, data.Op,
		strings.Join(data.InputTypes, ", "), data.Disposition)
	if data.Result != "" {
		fmt.Fprintf(s.w, "  Result: %s\n", data.Result)
	}
	if data.Error != "" {
		fmt.Fprintf(s.w, "  Error: %s\n", data.Error)
	}
	for i, a := range data.Attempts {
		fmt.Fprintf(s.w, "  Attempt %d: %s → %s\n", i, a.TypeName, a.Disposition)
	}
}
