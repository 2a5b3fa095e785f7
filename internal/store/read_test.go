package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snc/internal/ir"
)

func TestReadDocument_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadDocumentByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDocuments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)

	seedDocument(t, s, "zeta")
	seedDocument(t, s, "alpha")

	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "alpha", docs[0].Name)
	assert.Equal(t, "zeta", docs[1].Name)
}

func TestReadEntries_JoinsArtifacts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc, tokens := seedDocument(t, s, "app",
		tokenData(ir.KindScene, "S", "s", 0, "f"),
		tokenData(ir.KindFunction, "f", "f", 1),
	)
	art := commitArtifact(t, s, tokens[1], ir.OutcomeInvalid)

	entries, err := s.ReadEntries(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, tokens[0], entries[0].Token)
	assert.Nil(t, entries[0].Artifact)
	assert.True(t, entries[0].Pending())

	require.NotNil(t, entries[1].Artifact)
	assert.Equal(t, art.ID, entries[1].Artifact.ID)
	assert.Equal(t, ir.OutcomeInvalid, entries[1].Artifact.Outcome)
	assert.False(t, entries[1].Artifact.Valid)
	assert.Nil(t, entries[1].Artifact.Score)
	assert.Nil(t, entries[1].Artifact.Diagnostics)
	assert.False(t, entries[1].Pending())

	byName, err := s.ReadDocumentEntries(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, entries, byName)
}

func TestReadDocumentEntries_UnknownDocument(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.ReadDocumentEntries(context.Background(), "new")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReadToken(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc, tokens := seedDocument(t, s, "app", tokenData(ir.KindComponent, "C", "c", 0))

	tok, err := s.ReadToken(ctx, tokens[0].ID)
	require.NoError(t, err)
	assert.Equal(t, tokens[0], tok)

	tok, err = s.ReadTokenByKey(ctx, doc.ID, ir.IdentityKey{Kind: ir.KindComponent, Name: "C"})
	require.NoError(t, err)
	assert.Equal(t, tokens[0], tok)

	_, err = s.ReadTokenByKey(ctx, doc.ID, ir.IdentityKey{Kind: ir.KindScene, Name: "C"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadToken(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadArtifactsByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, tokens := seedDocument(t, s, "app",
		tokenData(ir.KindScene, "A", "same", 0),
		tokenData(ir.KindScene, "B", "same", 1),
		tokenData(ir.KindScene, "C", "other", 2),
	)
	for _, tok := range tokens {
		commitArtifact(t, s, tok, ir.OutcomeCompiled)
	}

	arts, err := s.ReadArtifactsByHash(ctx, ir.ContentHash("same"))
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, tokens[0].ID, arts[0].TokenID)
	assert.Equal(t, tokens[1].ID, arts[1].TokenID)

	hashes, err := s.CacheHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 2, "identical content shares one cache row")
}
