// Package diff compares two token generations of one document by identity
// key and content hash.
//
// Only the removed, changed and added partitions cause mutation or
// recompilation. Instance UUIDs are never consulted.
package diff

import (
	"github.com/roach88/snc/internal/ir"
)

// Diff partitions old (persisted) and next (freshly parsed) generations.
//
// Removed follows old input order; Changed, Added and Unchanged follow next
// input order. Either side holding the same identity key twice fails with a
// DuplicateIdentityError before any result is built.
func Diff(old []ir.TokenEntry, next []ir.TokenData) (*ir.DiffResult, error) {
	oldMap := make(map[ir.IdentityKey]int, len(old))
	for i, e := range old {
		key := e.Token.Key()
		if _, dup := oldMap[key]; dup {
			return nil, &DuplicateIdentityError{Side: SideOld, Key: key}
		}
		oldMap[key] = i
	}

	newMap := make(map[ir.IdentityKey]int, len(next))
	for i, d := range next {
		key := d.Key()
		if _, dup := newMap[key]; dup {
			return nil, &DuplicateIdentityError{Side: SideNew, Key: key}
		}
		newMap[key] = i
	}

	result := &ir.DiffResult{
		Removed:   []ir.TokenEntry{},
		Changed:   []ir.ChangedEntry{},
		Added:     []ir.TokenData{},
		Unchanged: []ir.TokenEntry{},
	}

	for _, e := range old {
		if _, ok := newMap[e.Token.Key()]; !ok {
			result.Removed = append(result.Removed, e)
		}
	}

	for _, d := range next {
		d.ContentHash = hashOf(d)

		i, ok := oldMap[d.Key()]
		if !ok {
			result.Added = append(result.Added, d)
			continue
		}

		prev := old[i]
		if prev.Token.ContentHash == d.ContentHash {
			kept := prev
			kept.Token.Order = d.Order
			result.Unchanged = append(result.Unchanged, kept)
			continue
		}

		result.Changed = append(result.Changed, ir.ChangedEntry{
			Old:         prev.Token,
			OldArtifact: prev.Artifact,
			New:         d,
		})
	}

	return result, nil
}

// hashOf returns the data's content hash, computing it if the producer left
// it empty.
func hashOf(d ir.TokenData) string {
	if d.ContentHash != "" {
		return d.ContentHash
	}
	return ir.ContentHash(d.Content)
}
