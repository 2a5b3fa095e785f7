package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/snc/internal/ir"
)

// ApplyDiff records a new revision of the named document and applies the
// diff to its persisted token generation, all in one transaction:
//
//   - the document is created on first use, otherwise its text is replaced
//     and its revision incremented
//   - removed tokens are deleted (their artifacts cascade)
//   - changed tokens are updated in place and their artifacts deleted
//   - added tokens are inserted
//   - unchanged tokens get their new order
//
// On any error nothing is written. Returns the document and the resulting
// token generation in document order.
func (s *Store) ApplyDiff(ctx context.Context, name, text string, d *ir.DiffResult) (ir.Document, []ir.Token, error) {
	if d == nil {
		d = &ir.DiffResult{}
	}

	var docID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		docID, err = s.upsertDocument(ctx, tx, name, text)
		if err != nil {
			return err
		}

		for _, e := range d.Removed {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM tokens WHERE id = ? AND document_id = ?`, e.Token.ID, docID); err != nil {
				return fmt.Errorf("delete token %d: %w", e.Token.ID, err)
			}
		}

		for _, c := range d.Changed {
			if err := updateToken(ctx, tx, c.Old.ID, c.New); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM artifacts WHERE token_id = ?`, c.Old.ID); err != nil {
				return fmt.Errorf("delete artifact of token %d: %w", c.Old.ID, err)
			}
		}

		for _, e := range d.Unchanged {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tokens SET ord = ? WHERE id = ? AND ord <> ?`,
				e.Token.Order, e.Token.ID, e.Token.Order); err != nil {
				return fmt.Errorf("reorder token %d: %w", e.Token.ID, err)
			}
		}

		for _, a := range d.Added {
			if err := insertToken(ctx, tx, docID, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ir.Document{}, nil, fmt.Errorf("apply diff to %q: %w", name, err)
	}

	doc, err := s.ReadDocumentByID(ctx, docID)
	if err != nil {
		return ir.Document{}, nil, err
	}
	tokens, err := s.ReadTokens(ctx, docID)
	if err != nil {
		return ir.Document{}, nil, err
	}
	return doc, tokens, nil
}

func (s *Store) upsertDocument(ctx context.Context, tx *sql.Tx, name, text string) (int64, error) {
	now := s.nowMillis()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (name, content, content_hash, revision, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			revision = documents.revision + 1,
			updated_at = excluded.updated_at
	`, name, text, ir.DocumentHash(text), now, now)
	if err != nil {
		return 0, fmt.Errorf("write document: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("read document id: %w", err)
	}
	return id, nil
}

func insertToken(ctx context.Context, tx *sql.Tx, docID int64, d ir.TokenData) error {
	deps, err := marshalNames(d.DependencyNames)
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tokens
		(document_id, instance_uuid, kind, name, content, content_hash, ord, dependency_names)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, docID, d.InstanceUUID, string(d.Kind), d.Name, d.Content, d.ContentHash, d.Order, deps)
	if err != nil {
		return fmt.Errorf("write token %s: %w", d.Key(), err)
	}
	return nil
}

func updateToken(ctx context.Context, tx *sql.Tx, id int64, d ir.TokenData) error {
	deps, err := marshalNames(d.DependencyNames)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tokens
		SET instance_uuid = ?, content = ?, content_hash = ?, ord = ?, dependency_names = ?
		WHERE id = ?
	`, d.InstanceUUID, d.Content, d.ContentHash, d.Order, deps, id)
	if err != nil {
		return fmt.Errorf("update token %d: %w", id, err)
	}
	return nil
}

// DeleteDocument removes a document with its tokens and artifacts.
// Cache rows are content-addressed and survive.
func (s *Store) DeleteDocument(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete document %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document %q: %w", name, err)
	}
	return n > 0, nil
}

// ErrArtifactTokenMismatch is returned when a unit of work is asked to
// persist an artifact bound to a different token.
var ErrArtifactTokenMismatch = errors.New("artifact token id does not match unit of work")

// UnitOfWork buffers one compilation task's writes. It is created per task,
// never shared, and committed exactly once.
type UnitOfWork struct {
	store   *Store
	tokenID int64

	artifact  *ir.Artifact
	cacheCode map[string]string
	swaps     []cacheSwap
	done      bool
}

type cacheSwap struct {
	hash, from, to string
}

// NewUnitOfWork returns a write buffer for the task compiling tokenID.
func (s *Store) NewUnitOfWork(tokenID int64) *UnitOfWork {
	return &UnitOfWork{
		store:     s,
		tokenID:   tokenID,
		cacheCode: make(map[string]string),
	}
}

// TokenID returns the token this unit of work writes for.
func (u *UnitOfWork) TokenID() int64 {
	return u.tokenID
}

// PutArtifact stages the token's new artifact, replacing anything staged before.
func (u *UnitOfWork) PutArtifact(a ir.Artifact) {
	c := a.Clone()
	u.artifact = &c
}

// PutCache stages a cache insert. The first writer of a hash wins.
func (u *UnitOfWork) PutCache(hash, code string) {
	u.cacheCode[hash] = code
}

// SwapCache stages a compare-and-swap of a cache row's code: the row is
// updated only if it still holds from.
func (u *UnitOfWork) SwapCache(hash, from, to string) {
	u.swaps = append(u.swaps, cacheSwap{hash: hash, from: from, to: to})
}

// Commit writes the staged artifact (replacing the token's existing one) and
// cache rows in one transaction. On error nothing is written. Returns the
// persisted artifact with its id.
func (u *UnitOfWork) Commit(ctx context.Context) (ir.Artifact, error) {
	if u.done {
		return ir.Artifact{}, fmt.Errorf("unit of work for token %d already finished", u.tokenID)
	}
	u.done = true

	var saved ir.Artifact
	err := u.store.withTx(ctx, func(tx *sql.Tx) error {
		if u.artifact != nil {
			a, err := u.store.replaceArtifact(ctx, tx, u.tokenID, *u.artifact)
			if err != nil {
				return err
			}
			saved = a
		}

		for _, hash := range ir.SortedKeys(u.cacheCode) {
			if _, err := u.store.insertCache(ctx, tx, hash, u.cacheCode[hash]); err != nil {
				return err
			}
		}

		for _, sw := range u.swaps {
			if _, err := tx.ExecContext(ctx,
				`UPDATE artifact_cache SET code = ? WHERE content_hash = ? AND code = ?`,
				sw.to, sw.hash, sw.from); err != nil {
				return fmt.Errorf("swap cache %s: %w", sw.hash, err)
			}
		}
		return nil
	})
	if err != nil {
		return ir.Artifact{}, fmt.Errorf("commit token %d: %w", u.tokenID, err)
	}
	return saved, nil
}

// Discard drops everything staged.
func (u *UnitOfWork) Discard() {
	u.done = true
	u.artifact = nil
	u.cacheCode = nil
	u.swaps = nil
}

func (s *Store) replaceArtifact(ctx context.Context, tx *sql.Tx, tokenID int64, a ir.Artifact) (ir.Artifact, error) {
	if a.TokenID != 0 && a.TokenID != tokenID {
		return ir.Artifact{}, fmt.Errorf("%w: %d != %d", ErrArtifactTokenMismatch, a.TokenID, tokenID)
	}
	a.TokenID = tokenID

	diags, err := marshalDiagnostics(a.Diagnostics)
	if err != nil {
		return ir.Artifact{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE token_id = ?`, tokenID); err != nil {
		return ir.Artifact{}, fmt.Errorf("delete artifact of token %d: %w", tokenID, err)
	}

	createdAt := a.CreatedAt.UnixMilli()
	if a.CreatedAt.IsZero() {
		createdAt = s.nowMillis()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts
		(token_id, content_hash, code, valid, cache_hit, outcome, score, feedback, diagnostics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tokenID, a.ContentHash, a.Code, boolInt(a.Valid), boolInt(a.CacheHit), string(a.Outcome),
		nullScore(a.Score), a.Feedback, diags, createdAt)
	if err != nil {
		return ir.Artifact{}, fmt.Errorf("write artifact of token %d: %w", tokenID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ir.Artifact{}, fmt.Errorf("write artifact of token %d: %w", tokenID, err)
	}
	a.ID = id
	return a, nil
}

// insertCache inserts a cache row unless one exists for the hash.
// Returns true if this call created the row.
func (s *Store) insertCache(ctx context.Context, tx *sql.Tx, hash, code string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO artifact_cache (content_hash, code, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, hash, code, s.nowMillis())
	if err != nil {
		return false, fmt.Errorf("write cache %s: %w", hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write cache %s: %w", hash, err)
	}
	return n > 0, nil
}

// PutCache inserts a cache row outside any task. Returns true if the row
// was created, false if the hash was already cached.
func (s *Store) PutCache(ctx context.Context, hash, code string) (bool, error) {
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = s.insertCache(ctx, tx, hash, code)
		return err
	})
	return created, err
}

// PruneCache deletes cache rows no artifact refers to. Returns the number
// of rows removed.
func (s *Store) PruneCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM artifact_cache
		WHERE content_hash NOT IN (SELECT content_hash FROM artifacts)
	`)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}
