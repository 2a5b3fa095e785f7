// Package compiler runs the per-token compilation pipeline over a level plan.
//
// Each task looks up the artifact cache, generates code on a miss,
// validates it (optionally repairing it), evaluates valid code and commits
// the result through a unit of work owned by that task alone. Levels run in
// strict sequence with a barrier between them; tasks within a level run on a
// bounded worker pool reused for the whole batch.
//
// A task never fails its level. Collaborator errors, persistence errors and
// panics all end in a TaskResult with an outcome, and the batch Report
// partitions every planned token into compiled, cached, invalid or errored.
package compiler
