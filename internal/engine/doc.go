// Package engine runs the snc pipeline for one document update.
//
// An update flows text → unit tree → flat tokens → diff against the stored
// generation → dependency graph over the resulting generation → level plan
// → compile. The parse, diff and graph phases are pure; a duplicate
// identity or a dependency cycle aborts the update before anything is
// written. Once the diff is applied, the compile phase runs the work set:
// changed and added tokens plus untouched tokens whose artifact is pending
// (missing, stale, or errored on an earlier batch).
//
// Updates are serialised. Callers either call Update directly or Submit
// updates to the queue drained by Run, which coalesces repeated saves of
// the same document.
package engine
