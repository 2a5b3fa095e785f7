package narrative

import (
	"github.com/roach88/snc/internal/ir"
)

// Flatten walks the forest depth-first (preorder) and returns one TokenData
// per unit. Order is the preorder index. Every call assigns fresh instance
// UUIDs; a nil generator uses UUIDv7.
func Flatten(forest []*Unit, gen ir.InstanceGenerator) []ir.TokenData {
	if gen == nil {
		gen = ir.UUIDv7Generator{}
	}

	tokens := make([]ir.TokenData, 0, Count(forest))
	for _, root := range forest {
		root.Walk(func(u *Unit) {
			content := u.Content()
			deps := make([]string, len(u.Dependencies))
			copy(deps, u.Dependencies)

			tokens = append(tokens, ir.TokenData{
				InstanceUUID:    gen.Generate(),
				Kind:            u.Kind,
				Name:            u.Name,
				Content:         content,
				ContentHash:     ir.ContentHash(content),
				Order:           len(tokens),
				DependencyNames: deps,
			})
		})
	}
	return tokens
}

// Tokenize parses text and flattens the result.
func Tokenize(text string, gen ir.InstanceGenerator) ([]ir.TokenData, []Diagnostic) {
	forest, diags := Parse(text)
	return Flatten(forest, gen), diags
}
