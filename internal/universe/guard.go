package universe

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxDelegationDepth is the delegation nesting limit applied when a
// universe is built without WithMaxDelegationDepth.
const DefaultMaxDelegationDepth = 32

// DelegationGuard bounds scripted delegation nesting.
//
// A delegate behavior re-enters the resolver from inside a handler, so a
// universe whose behaviors delegate in a cycle (add delegates to multiply,
// multiply back to add) would recurse without bound. The guard caps the
// nesting depth; exceeding it fails the delegating handler with a
// DelegationDepthError instead of exhausting the stack.
type DelegationGuard struct {
	mu       sync.Mutex
	maxDepth int
	depth    int
}

// NewDelegationGuard creates a guard with the given depth limit.
// A non-positive limit falls back to DefaultMaxDelegationDepth.
func NewDelegationGuard(maxDepth int) *DelegationGuard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDelegationDepth
	}
	return &DelegationGuard{maxDepth: maxDepth}
}

// Enter records one delegation hop. It returns DelegationDepthError when
// the hop would exceed the limit; the caller must not proceed and must not
// call Exit for a failed Enter.
func (g *DelegationGuard) Enter(typeName, op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.depth+1 > g.maxDepth {
		return &DelegationDepthError{
			TypeName: typeName,
			Op:       op,
			Depth:    g.depth + 1,
			Limit:    g.maxDepth,
		}
	}
	g.depth++
	return nil
}

// Exit unwinds one delegation hop.
func (g *DelegationGuard) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.depth > 0 {
		g.depth--
	}
}

// Depth returns the current nesting depth.
// Used for logging and diagnostics.
func (g *DelegationGuard) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}

// MaxDepth returns the nesting limit.
func (g *DelegationGuard) MaxDepth() int {
	return g.maxDepth
}

// DelegationDepthError is returned when scripted delegation nests deeper
// than the universe's limit.
type DelegationDepthError struct {
	TypeName string // The delegating type
	Op       string // The delegation target operation
	Depth    int    // Depth the rejected hop would have reached
	Limit    int    // Maximum allowed depth
}

// Error implements the error interface.
func (e *DelegationDepthError) Error() string {
	return fmt.Sprintf("type '%s' exceeded max delegation depth delegating to '%s': %d > %d limit",
		e.TypeName, e.Op, e.Depth, e.Limit)
}

// IsDelegationDepthError returns true if the error is a DelegationDepthError.
// Uses errors.As to handle wrapped errors.
func IsDelegationDepthError(err error) bool {
	var de *DelegationDepthError
	return errors.As(err, &de)
}
