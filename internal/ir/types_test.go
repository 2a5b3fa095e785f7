package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFieldNaming(t *testing.T) {
	tok := Token{
		ID:              1,
		DocumentID:      2,
		InstanceUUID:    "inst-1",
		Kind:            KindScene,
		Name:            "Main",
		ContentHash:     "abc",
		DependencyNames: []string{"Other"},
	}
	data, err := json.Marshal(tok)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"document_id"`)
	assert.Contains(t, string(data), `"instance_uuid"`)
	assert.Contains(t, string(data), `"content_hash"`)
	assert.Contains(t, string(data), `"dependency_names"`)
	assert.NotContains(t, string(data), `"documentId"`)
}

func TestKindDepth(t *testing.T) {
	assert.Equal(t, 0, KindScene.Depth())
	assert.Equal(t, 1, KindComponent.Depth())
	assert.Equal(t, 2, KindFunction.Depth())
	assert.Equal(t, -1, Kind("module").Depth())
	assert.False(t, Kind("").Valid())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Component ")
	require.NoError(t, err)
	assert.Equal(t, KindComponent, k)

	_, err = ParseKind("widget")
	assert.Error(t, err)
}

func TestIdentityKeyRoundTrip(t *testing.T) {
	key := IdentityKey{Kind: KindFunction, Name: "add:numbers"}
	assert.Equal(t, "function:add:numbers", key.String())

	parsed, err := ParseIdentityKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseIdentityKey("nocolon")
	assert.Error(t, err)
	_, err = ParseIdentityKey("widget:x")
	assert.Error(t, err)
}

func TestArtifactCloneIsDeep(t *testing.T) {
	score := 7.5
	a := Artifact{
		Code:        "x",
		Score:       &score,
		Diagnostics: []Diagnostic{{Message: "m"}},
	}
	c := a.Clone()
	*c.Score = 1
	c.Diagnostics[0].Message = "changed"

	assert.Equal(t, 7.5, *a.Score)
	assert.Equal(t, "m", a.Diagnostics[0].Message)
}

func TestArtifactCurrent(t *testing.T) {
	tok := Token{ID: 3, ContentHash: "h1"}

	var nilArt *Artifact
	assert.False(t, nilArt.Current(tok))
	assert.True(t, (&Artifact{TokenID: 3, ContentHash: "h1"}).Current(tok))
	assert.False(t, (&Artifact{TokenID: 3, ContentHash: "h0"}).Current(tok))
	assert.False(t, (&Artifact{TokenID: 4, ContentHash: "h1"}).Current(tok))
}

func TestDiffResultSummary(t *testing.T) {
	var nilDiff *DiffResult
	assert.True(t, nilDiff.Empty())
	assert.Equal(t, DiffSummary{}, nilDiff.Summary())

	d := &DiffResult{
		Removed: []TokenEntry{{}},
		Added:   []TokenData{{}, {}},
	}
	assert.False(t, d.Empty())
	assert.Equal(t, DiffSummary{Removed: 1, Added: 2}, d.Summary())
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{File: "a.ts", Line: 3, Char: 5, Severity: "error", Code: "TS2304", Message: "Cannot find name 'x'."}
	assert.Equal(t, "a.ts(3,5): error TS2304: Cannot find name 'x'.", d.String())
	assert.Equal(t, "boom", Diagnostic{Message: "boom"}.String())
}

func TestSequenceGenerator(t *testing.T) {
	g := &SequenceGenerator{Prefix: "t"}
	assert.Equal(t, "t-1", g.Generate())
	assert.Equal(t, "t-2", g.Generate())

	var u UUIDv7Generator
	assert.Len(t, u.Generate(), 36)
	assert.NotEqual(t, u.Generate(), u.Generate())
}

func TestTokenEntryPending(t *testing.T) {
	tok := Token{ID: 1, ContentHash: "h"}

	assert.True(t, TokenEntry{Token: tok}.Pending(), "missing artifact")
	assert.True(t, TokenEntry{Token: tok, Artifact: &Artifact{TokenID: 1, ContentHash: "old"}}.Pending(), "stale artifact")
	assert.True(t, TokenEntry{Token: tok, Artifact: &Artifact{TokenID: 1, ContentHash: "h", Outcome: OutcomeErrored}}.Pending(), "errored")
	assert.False(t, TokenEntry{Token: tok, Artifact: &Artifact{TokenID: 1, ContentHash: "h", Outcome: OutcomeInvalid}}.Pending())
	assert.False(t, TokenEntry{Token: tok, Artifact: &Artifact{TokenID: 1, ContentHash: "h", Outcome: OutcomeCompiled}}.Pending())
}
