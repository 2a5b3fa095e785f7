package testutil

// FixedIDGenerator returns the same id every time.
//
// Batch reports carry a batch id; fixing it makes reports byte-identical
// across runs so they can be compared against golden files.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
//
// If id is empty, Generate() returns "test-batch-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-batch-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements ir.InstanceGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
