// Package id provides centralized ID generation for the backend.
//
// Two kinds of identifiers live here:
//
//   - Random, prefixed ULIDs for correlation tokens and sessions
//     (permission request IDs, page session IDs). Lexicographically
//     sortable and unique; never derived from input.
//
//   - Deterministic script IDs derived from a non-cryptographic hash of
//     the script's identity (URL, or content hash for inline code) plus
//     its discovery index. Deterministic within one discovery pass; not
//     guaranteed stable across passes if ordering changes.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"
)

// RequestID identifies a pending permission request. One-shot
// correlation token: consumed by the first matching response.
type RequestID string

// SessionID identifies a page session.
type SessionID string

const (
	requestPrefix = "req"
	sessionPrefix = "page"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source. Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a permission request correlation token.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(requestPrefix))
}

// NewSessionID generates a page session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(sessionPrefix))
}

func (id RequestID) String() string { return string(id) }
func (id SessionID) String() string { return string(id) }

// Hash computes a short, deterministic, non-cryptographic hash of s.
// Collisions are possible and acceptable; callers must not assume
// injectivity.
func Hash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 36)
}

// Script builds the discovery identifier for a script: the script type,
// the hash of its identity, and its discovery index.
func Script(identity string, scriptType string, index int) string {
	return fmt.Sprintf("%s-%s-%d", scriptType, Hash(identity), index)
}

// Inline builds the synthetic pseudo-URL for an inline script, which has
// no network address of its own.
func Inline(content string) string {
	return "inline-" + Hash(content)
}
