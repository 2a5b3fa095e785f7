package ir

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InstanceGenerator produces per-parse instance UUIDs for tokens.
type InstanceGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 instance identifiers.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns "prefix-N" identifiers in order.
// Safe for concurrent use; intended for deterministic tests.
type SequenceGenerator struct {
	Prefix string

	mu   sync.Mutex
	next int
}

// Generate returns the next identifier in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "inst"
	}
	return fmt.Sprintf("%s-%d", prefix, g.next)
}
