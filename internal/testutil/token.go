package testutil

import (
	"fmt"
	"sync"
)

// FixedTokens generates injection tokens from a fixed prefix and a counter.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedTokens produces byte-identical
// journal rows and trace output.
//
// Unlike driver.UUIDv7Tokens, the sequence restarts with every generator,
// so tokens are only unique within one test.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedTokens creates a token generator with the given prefix.
//
// If prefix is empty, tokens use the prefix "tok". The first token is
// "tok-0001", the second "tok-0002", and so on.
func NewFixedTokens(prefix string) *FixedTokens {
	if prefix == "" {
		prefix = "tok"
	}
	return &FixedTokens{prefix: prefix}
}

// NewToken returns the next token in the sequence.
//
// Implements driver.TokenGenerator.
func (g *FixedTokens) NewToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Issued returns how many tokens have been generated so far.
//
// Tests use this to prove that an operation never reached the token
// generator at all.
func (g *FixedTokens) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
