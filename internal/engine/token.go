package engine

import (
	"sync"

	"github.com/google/uuid"
)

// PassTokenGenerator generates unique tokens correlating the log lines of
// one sync pass. Implemented by UUIDv7Generator (production) and
// FixedGenerator (tests).
type PassTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 pass tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time, which keeps interleaved logs from consecutive
// passes easy to separate.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined pass tokens for testing, enabling
// deterministic log and trace assertions.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
// Generate panics once all tokens are consumed; tests should provide
// exactly as many tokens as passes they run.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	t := g.tokens[g.idx]
	g.idx++
	return t
}
