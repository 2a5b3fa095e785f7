package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/snc/internal/ir"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore creates a new store in a temp directory with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(func() time.Time { return testEpoch }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tokenData creates parsed token data with its content hash filled in.
func tokenData(kind ir.Kind, name, content string, order int, deps ...string) ir.TokenData {
	if deps == nil {
		deps = []string{}
	}
	return ir.TokenData{
		InstanceUUID:    "inst-" + name,
		Kind:            kind,
		Name:            name,
		Content:         content,
		ContentHash:     ir.ContentHash(content),
		Order:           order,
		DependencyNames: deps,
	}
}

// seedDocument applies an all-added diff and returns the tokens.
func seedDocument(t *testing.T, s *Store, name string, data ...ir.TokenData) (ir.Document, []ir.Token) {
	t.Helper()
	doc, tokens, err := s.ApplyDiff(context.Background(), name, "text", &ir.DiffResult{Added: data})
	if err != nil {
		t.Fatalf("ApplyDiff() failed: %v", err)
	}
	return doc, tokens
}

// commitArtifact persists an artifact for tok through a unit of work.
func commitArtifact(t *testing.T, s *Store, tok ir.Token, outcome ir.Outcome) ir.Artifact {
	t.Helper()
	uow := s.NewUnitOfWork(tok.ID)
	uow.PutArtifact(ir.Artifact{
		ContentHash: tok.ContentHash,
		Code:        "code:" + tok.Name,
		Valid:       outcome == ir.OutcomeCompiled || outcome == ir.OutcomeCached,
		Outcome:     outcome,
	})
	uow.PutCache(tok.ContentHash, "code:"+tok.Name)
	a, err := uow.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return a
}
