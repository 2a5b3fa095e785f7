// Package store provides SQLite-backed persistence for documents, tokens,
// artifacts and the content-addressed artifact cache.
//
// # Tables
//
//   - documents: named narrative documents and their current text
//   - tokens: the current token generation per document,
//     UNIQUE(document_id, kind, name) enforces identity-key uniqueness
//   - artifacts: at most one current artifact per token (token_id UNIQUE),
//     deleted with its token
//   - artifact_cache: code keyed by content hash
//
// # Write paths
//
// ApplyDiff mutates a document's token generation in a single transaction.
// Compilation tasks never share a transaction: each task owns a UnitOfWork
// that buffers its writes and commits them atomically when the task ends.
// A failed commit rolls back and leaves the token pending for a later batch.
//
// Cache rows are inserted with ON CONFLICT DO NOTHING, so concurrent tasks
// with identical content can never create duplicate entries.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
