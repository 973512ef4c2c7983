package ir

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator generates call tokens for resolution correlation.
// Implemented by UUIDv7Generator (production) and FixedTokenGenerator
// (tests and replay).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 call tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, so tokens sort
// by creation time, which keeps trace listings chronological for free.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails, which does not happen in practice.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokenGenerator returns predetermined tokens in order. It enables
// deterministic golden traces: a test provides known tokens and compares
// exact output.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedTokenGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokenGenerator creates a generator that returns tokens in order.
//
// Example:
//
//	gen := NewFixedTokenGenerator("call-1", "call-2")
//	gen.Generate() // "call-1"
//	gen.Generate() // "call-2"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedTokenGenerator(tokens ...string) *FixedTokenGenerator {
	return &FixedTokenGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
// Panics when all tokens are consumed: a test asking for more calls than
// it declared is misconfigured and should fail fast.
func (g *FixedTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedTokenGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
