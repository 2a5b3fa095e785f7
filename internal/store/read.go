package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/snc/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const documentColumns = `id, name, content, revision, created_at, updated_at`

// ReadDocument returns the named document, or ErrNotFound.
func (s *Store) ReadDocument(ctx context.Context, name string) (ir.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE name = ?`, name)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Document{}, fmt.Errorf("document %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return ir.Document{}, fmt.Errorf("read document %q: %w", name, err)
	}
	return doc, nil
}

// ReadDocumentByID returns the document with the given id, or ErrNotFound.
func (s *Store) ReadDocumentByID(ctx context.Context, id int64) (ir.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Document{}, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Document{}, fmt.Errorf("read document %d: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by name.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListDocuments(ctx context.Context) ([]ir.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []ir.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

const tokenColumns = `t.id, t.document_id, t.instance_uuid, t.kind, t.name, t.content, t.content_hash, t.ord, t.dependency_names`

// ReadTokens returns a document's token generation in document order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadTokens(ctx context.Context, documentID int64) ([]ir.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens t
		WHERE t.document_id = ?
		ORDER BY t.ord ASC, t.id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := []ir.Token{}
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// ReadToken returns the token with the given id, or ErrNotFound.
func (s *Store) ReadToken(ctx context.Context, id int64) (ir.Token, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens t WHERE t.id = ?`, id)
	tok, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Token{}, fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Token{}, err
	}
	return tok, nil
}

// ReadTokenByKey returns a document's token with the given identity key,
// or ErrNotFound.
func (s *Store) ReadTokenByKey(ctx context.Context, documentID int64, key ir.IdentityKey) (ir.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM tokens t
		WHERE t.document_id = ? AND t.kind = ? AND t.name = ?
	`, documentID, string(key.Kind), key.Name)
	tok, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Token{}, fmt.Errorf("token %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return ir.Token{}, err
	}
	return tok, nil
}

const artifactColumns = `a.id, a.token_id, a.content_hash, a.code, a.valid, a.cache_hit, a.outcome, a.score, a.feedback, a.diagnostics, a.created_at`

// ReadEntries returns a document's tokens paired with their current
// artifacts, in document order.
func (s *Store) ReadEntries(ctx context.Context, documentID int64) ([]ir.TokenEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tokenColumns+`,
			`+artifactColumns+`
		FROM tokens t
		LEFT JOIN artifacts a ON a.token_id = t.id
		WHERE t.document_id = ?
		ORDER BY t.ord ASC, t.id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.TokenEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadDocumentEntries is ReadEntries by document name. A document that does
// not exist yet has no entries.
func (s *Store) ReadDocumentEntries(ctx context.Context, name string) ([]ir.TokenEntry, error) {
	doc, err := s.ReadDocument(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return []ir.TokenEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.ReadEntries(ctx, doc.ID)
}

// ReadArtifact returns the current artifact for a token, or ErrNotFound.
func (s *Store) ReadArtifact(ctx context.Context, tokenID int64) (ir.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts a WHERE a.token_id = ?`, tokenID)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Artifact{}, fmt.Errorf("artifact of token %d: %w", tokenID, ErrNotFound)
	}
	if err != nil {
		return ir.Artifact{}, err
	}
	return a, nil
}

// ReadArtifactsByHash returns every current artifact produced from the
// given content hash, ordered by id.
func (s *Store) ReadArtifactsByHash(ctx context.Context, hash string) ([]ir.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts a WHERE a.content_hash = ? ORDER BY a.id ASC`, hash)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	out := []ir.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

// CountArtifacts returns the number of artifact rows for a document.
func (s *Store) CountArtifacts(ctx context.Context, documentID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM artifacts a
		JOIN tokens t ON t.id = a.token_id
		WHERE t.document_id = ?
	`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return n, nil
}

// LookupCache returns the cached code for a content hash.
func (s *Store) LookupCache(ctx context.Context, hash string) (string, bool, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM artifact_cache WHERE content_hash = ?`, hash).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read cache %s: %w", hash, err)
	}
	return code, true, nil
}

// CacheHashes returns every cached content hash in ascending order.
func (s *Store) CacheHashes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash FROM artifact_cache ORDER BY content_hash COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan cache: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache: %w", err)
	}
	return hashes, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (ir.Document, error) {
	var (
		doc                  ir.Document
		createdAt, updatedAt int64
	)
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Content, &doc.Revision, &createdAt, &updatedAt); err != nil {
		return ir.Document{}, err
	}
	doc.CreatedAt = time.UnixMilli(createdAt).UTC()
	doc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return doc, nil
}

func scanToken(row scanner) (ir.Token, error) {
	var (
		tok  ir.Token
		kind string
		deps string
	)
	err := row.Scan(&tok.ID, &tok.DocumentID, &tok.InstanceUUID, &kind, &tok.Name,
		&tok.Content, &tok.ContentHash, &tok.Order, &deps)
	if err != nil {
		return ir.Token{}, err
	}
	tok.Kind = ir.Kind(kind)
	if tok.DependencyNames, err = unmarshalNames(deps); err != nil {
		return ir.Token{}, fmt.Errorf("token %d: %w", tok.ID, err)
	}
	return tok, nil
}

func scanArtifact(row scanner) (ir.Artifact, error) {
	var (
		a         ir.Artifact
		outcome   string
		score     sql.NullFloat64
		diags     string
		createdAt int64
	)
	err := row.Scan(&a.ID, &a.TokenID, &a.ContentHash, &a.Code, &a.Valid, &a.CacheHit,
		&outcome, &score, &a.Feedback, &diags, &createdAt)
	if err != nil {
		return ir.Artifact{}, err
	}
	return finishArtifact(a, outcome, score, diags, createdAt)
}

func finishArtifact(a ir.Artifact, outcome string, score sql.NullFloat64, diags string, createdAt int64) (ir.Artifact, error) {
	a.Outcome = ir.Outcome(outcome)
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	var err error
	if a.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
		return ir.Artifact{}, fmt.Errorf("artifact %d: %w", a.ID, err)
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	return a, nil
}

// scanEntry scans a token row LEFT JOINed with its artifact.
func scanEntry(row scanner) (ir.TokenEntry, error) {
	var (
		tok       ir.Token
		kind      string
		deps      string
		aID       sql.NullInt64
		aTokenID  sql.NullInt64
		aHash     sql.NullString
		aCode     sql.NullString
		aValid    sql.NullBool
		aCacheHit sql.NullBool
		aOutcome  sql.NullString
		aScore    sql.NullFloat64
		aFeedback sql.NullString
		aDiags    sql.NullString
		aCreated  sql.NullInt64
	)
	err := row.Scan(&tok.ID, &tok.DocumentID, &tok.InstanceUUID, &kind, &tok.Name,
		&tok.Content, &tok.ContentHash, &tok.Order, &deps,
		&aID, &aTokenID, &aHash, &aCode, &aValid, &aCacheHit, &aOutcome, &aScore, &aFeedback, &aDiags, &aCreated)
	if err != nil {
		return ir.TokenEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	tok.Kind = ir.Kind(kind)
	if tok.DependencyNames, err = unmarshalNames(deps); err != nil {
		return ir.TokenEntry{}, fmt.Errorf("token %d: %w", tok.ID, err)
	}

	entry := ir.TokenEntry{Token: tok}
	if !aID.Valid {
		return entry, nil
	}

	a, err := finishArtifact(ir.Artifact{
		ID:          aID.Int64,
		TokenID:     aTokenID.Int64,
		ContentHash: aHash.String,
		Code:        aCode.String,
		Valid:       aValid.Bool,
		CacheHit:    aCacheHit.Bool,
		Feedback:    aFeedback.String,
	}, aOutcome.String, aScore, aDiags.String, aCreated.Int64)
	if err != nil {
		return ir.TokenEntry{}, err
	}
	entry.Artifact = &a
	return entry, nil
}
