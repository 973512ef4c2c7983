package dispatch

import (
	"fmt"
	"log/slog"
	"strings"
)

// MessageFormatter renders the failure message reported when every
// override candidate declines a call. declined holds the runtime type
// names of the declining candidates in decline order; the names are
// distinct because each type contributes at most one candidate.
type MessageFormatter func(op *Operation, variant Variant, inputs []Operand, kwargs *Params, declined []string) string

// DefaultMessageFormatter enumerates the declining operand types.
func DefaultMessageFormatter(op *Operation, variant Variant, inputs []Operand, kwargs *Params, declined []string) string {
	return fmt.Sprintf(
		"operand type(s) all returned NotImplemented from override handlers for '%s' (variant %s): %s",
		op.Name, variant, strings.Join(declined, ", "),
	)
}

// Dispatcher resolves override handlers for operation calls.
//
// A Dispatcher holds immutable configuration only. All per-call state
// lives on the stack of CheckOverride, so a single Dispatcher may be
// shared by any number of goroutines and re-entered from inside a running
// handler.
type Dispatcher struct {
	logger    *slog.Logger
	formatter MessageFormatter
	recorder  Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for dispatch events.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMessageFormatter replaces the unhandled-override message formatter.
func WithMessageFormatter(f MessageFormatter) Option {
	return func(d *Dispatcher) {
		d.formatter = f
	}
}

// WithRecorder attaches a resolution recorder. Without one, resolutions
// are not recorded.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:    slog.Default(),
		formatter: DefaultMessageFormatter,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// record hands a finished trace to the recorder, if any.
func (d *Dispatcher) record(tr *Trace) {
	if d.recorder == nil {
		return
	}
	d.recorder.Record(*tr)
}
