package ir

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the type of a narrative unit.
type Kind string

const (
	KindScene     Kind = "scene"
	KindComponent Kind = "component"
	KindFunction  Kind = "function"
)

// Kinds lists every unit kind from outermost to innermost nesting.
var Kinds = []Kind{KindScene, KindComponent, KindFunction}

// Depth returns the nesting depth of the kind (scene=0, component=1, function=2).
// Unknown kinds return -1.
func (k Kind) Depth() int {
	switch k {
	case KindScene:
		return 0
	case KindComponent:
		return 1
	case KindFunction:
		return 2
	default:
		return -1
	}
}

// Valid reports whether k is one of the known unit kinds.
func (k Kind) Valid() bool {
	return k.Depth() >= 0
}

// Prefix returns the short form used in generated names.
func (k Kind) Prefix() string {
	if k == KindFunction {
		return "func"
	}
	return string(k)
}

// ParseKind converts a string (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown unit kind %q", s)
	}
	return k, nil
}

// IdentityKey identifies a token across successive parses of a document.
//
// The key is (kind, disambiguated name). It is unique within one token
// generation; a violation is a fatal data error reported by the diff engine.
type IdentityKey struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

// String renders the key as "kind:name".
func (k IdentityKey) String() string {
	return string(k.Kind) + ":" + k.Name
}

// ParseIdentityKey parses the "kind:name" form produced by String.
func ParseIdentityKey(s string) (IdentityKey, error) {
	kindStr, name, ok := strings.Cut(s, ":")
	if !ok {
		return IdentityKey{}, fmt.Errorf("identity key %q: missing ':'", s)
	}
	kind, err := ParseKind(kindStr)
	if err != nil {
		return IdentityKey{}, fmt.Errorf("identity key %q: %w", s, err)
	}
	return IdentityKey{Kind: kind, Name: name}, nil
}

// TokenData is a freshly parsed token that has not been persisted.
type TokenData struct {
	// InstanceUUID is regenerated on every parse. It is NOT a cross-generation identity.
	InstanceUUID    string   `json:"instance_uuid"`
	Kind            Kind     `json:"kind"`
	Name            string   `json:"name"`
	Content         string   `json:"content"`
	ContentHash     string   `json:"content_hash"`
	Order           int      `json:"order"`
	DependencyNames []string `json:"dependency_names"`
}

// Key returns the identity key of the token data.
func (d TokenData) Key() IdentityKey {
	return IdentityKey{Kind: d.Kind, Name: d.Name}
}

// Token is a persisted narrative unit.
type Token struct {
	ID              int64    `json:"id"`
	DocumentID      int64    `json:"document_id"`
	InstanceUUID    string   `json:"instance_uuid"`
	Kind            Kind     `json:"kind"`
	Name            string   `json:"name"`
	Content         string   `json:"content"`
	ContentHash     string   `json:"content_hash"`
	Order           int      `json:"order"`
	DependencyNames []string `json:"dependency_names"`
}

// Key returns the identity key of the token.
func (t Token) Key() IdentityKey {
	return IdentityKey{Kind: t.Kind, Name: t.Name}
}

// Data returns the token's parse-level fields.
func (t Token) Data() TokenData {
	return TokenData{
		InstanceUUID:    t.InstanceUUID,
		Kind:            t.Kind,
		Name:            t.Name,
		Content:         t.Content,
		ContentHash:     t.ContentHash,
		Order:           t.Order,
		DependencyNames: t.DependencyNames,
	}
}

// Diagnostic is one structured validation message for generated code.
type Diagnostic struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Char     int    `json:"char,omitempty"`
	Severity string `json:"severity,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// String renders the diagnostic as "file(line,char): severity code: message".
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		fmt.Fprintf(&b, "%s(%d,%d): ", d.File, d.Line, d.Char)
	}
	if d.Severity != "" {
		b.WriteString(d.Severity)
		b.WriteByte(' ')
	}
	if d.Code != "" {
		b.WriteString(d.Code)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Outcome is the result class of one compilation task.
type Outcome string

const (
	// OutcomeCompiled: freshly generated code that passed validation.
	OutcomeCompiled Outcome = "compiled"
	// OutcomeCached: code reused from the artifact cache that passed validation.
	OutcomeCached Outcome = "cached"
	// OutcomeInvalid: code was produced but failed validation.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeErrored: generation, persistence or the task itself failed.
	OutcomeErrored Outcome = "errored"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{OutcomeCompiled, OutcomeCached, OutcomeInvalid, OutcomeErrored}

// Artifact is generated output bound to exactly one token.
//
// At most one current artifact exists per token. An artifact is only ever
// mutated inside the pipeline run that created it.
type Artifact struct {
	ID          int64        `json:"id"`
	TokenID     int64        `json:"token_id"`
	ContentHash string       `json:"content_hash"`
	Code        string       `json:"code"`
	Valid       bool         `json:"valid"`
	CacheHit    bool         `json:"cache_hit"`
	Outcome     Outcome      `json:"outcome"`
	Score       *float64     `json:"score,omitempty"`
	Feedback    string       `json:"feedback,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Clone returns a deep copy of the artifact.
func (a Artifact) Clone() Artifact {
	c := a
	if a.Score != nil {
		s := *a.Score
		c.Score = &s
	}
	if a.Diagnostics != nil {
		c.Diagnostics = make([]Diagnostic, len(a.Diagnostics))
		copy(c.Diagnostics, a.Diagnostics)
	}
	return c
}

// Current reports whether the artifact was produced from the token's present content.
func (a *Artifact) Current(t Token) bool {
	return a != nil && a.TokenID == t.ID && a.ContentHash == t.ContentHash
}

// Pending reports whether the token needs compiling even though its content
// did not change: its artifact is missing, stale or the last task errored.
func (e TokenEntry) Pending() bool {
	return !e.Artifact.Current(e.Token) || e.Artifact.Outcome == OutcomeErrored
}

// TokenEntry pairs a persisted token with its current artifact, if any.
type TokenEntry struct {
	Token    Token     `json:"token"`
	Artifact *Artifact `json:"artifact,omitempty"`
}

// ChangedEntry is a token whose identity survived but whose content hash changed.
type ChangedEntry struct {
	Old         Token     `json:"old"`
	OldArtifact *Artifact `json:"old_artifact,omitempty"`
	New         TokenData `json:"new"`
}

// DiffResult partitions two token generations of one document.
// It is ephemeral: produced once per update and consumed immediately.
//
// Unchanged carries the old entries whose content hash matched, with
// Token.Order updated to the new position. Unchanged entries never
// generate work on their own.
type DiffResult struct {
	Removed   []TokenEntry   `json:"removed"`
	Changed   []ChangedEntry `json:"changed"`
	Added     []TokenData    `json:"added"`
	Unchanged []TokenEntry   `json:"unchanged"`
}

// Empty reports whether the diff generates no work.
func (d *DiffResult) Empty() bool {
	return d == nil || (len(d.Removed) == 0 && len(d.Changed) == 0 && len(d.Added) == 0)
}

// Summary returns the removed/changed/added counts.
func (d *DiffResult) Summary() DiffSummary {
	if d == nil {
		return DiffSummary{}
	}
	return DiffSummary{
		Removed:   len(d.Removed),
		Changed:   len(d.Changed),
		Added:     len(d.Added),
		Unchanged: len(d.Unchanged),
	}
}

// DiffSummary holds the size of each diff partition.
type DiffSummary struct {
	Removed   int `json:"removed" yaml:"removed"`
	Changed   int `json:"changed" yaml:"changed"`
	Added     int `json:"added" yaml:"added"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
}

// Document is a named narrative document.
type Document struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
