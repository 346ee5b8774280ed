// Package id provides centralized ID generation for the backend.
//
// IDs are prefixed ULIDs: lexicographically sortable, debuggable in logs
// (ctx_*, ent_*, cmp_*), and unique without coordination. Separate Go
// types prevent a context id being passed where an entity id is expected.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ContextID identifies a workspace runtime context
type ContextID string

// EntityID identifies a shared entity (e.g. an open document)
type EntityID string

// ComponentID identifies a visual component within a runtime
type ComponentID string

// ScopeID identifies a higher-level collection of contexts
type ScopeID string

// SnapshotID identifies a persisted snapshot revision
type SnapshotID string

// Prefixes for each ID domain
const (
	ContextPrefix   = "ctx"
	EntityPrefix    = "ent"
	ComponentPrefix = "cmp"
	ScopePrefix     = "scope"
	SnapshotPrefix  = "snap"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with secure entropy
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewContextID generates a new context ID
func NewContextID() ContextID {
	return ContextID(Default().GenerateWithPrefix(ContextPrefix))
}

// NewEntityID generates a new entity ID
func NewEntityID() EntityID {
	return EntityID(Default().GenerateWithPrefix(EntityPrefix))
}

// NewComponentID generates a new component ID
func NewComponentID() ComponentID {
	return ComponentID(Default().GenerateWithPrefix(ComponentPrefix))
}

// NewScopeID generates a new scope ID
func NewScopeID() ScopeID {
	return ScopeID(Default().GenerateWithPrefix(ScopePrefix))
}

// NewSnapshotID generates a new snapshot ID
func NewSnapshotID() SnapshotID {
	return SnapshotID(Default().GenerateWithPrefix(SnapshotPrefix))
}

// String methods for ID types
func (id ContextID) String() string   { return string(id) }
func (id EntityID) String() string    { return string(id) }
func (id ComponentID) String() string { return string(id) }
func (id ScopeID) String() string     { return string(id) }
func (id SnapshotID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
