// Package harness runs conformance scenarios against the snc pipeline.
//
// A scenario is a YAML file describing a sequence of document revisions,
// scripted collaborator behaviour, and what each revision is expected to
// produce. Every scenario runs against a fresh in-memory store with a
// deterministic clock, sequential instance ids and a fixed batch id, so the
// outcome snapshot is stable and can be compared against a golden file.
//
// # Scenario Format
//
//	name: pending_retry
//	description: "An errored token is rescheduled on the next revision"
//	workers: 2
//	collaborators:
//	  fail_generate:
//	    - marker: FLAKY
//	      times: 1
//	revisions:
//	  - text: |
//	      [Scene:A]
//	      FLAKY
//	    expect:
//	      diff: {added: 1}
//	      levels: [[A]]
//	      errored: ["scene:A"]
//	  - text: |
//	      [Scene:A]
//	      FLAKY
//	    expect:
//	      levels: [[A]]
//	      compiled: ["scene:A"]
//
// Expectations left out are not checked. An empty list (errored: []) is
// checked and must match exactly. Expected errors are "cycle" and
// "duplicate_identity".
//
// Collaborator scripts match on a marker substring: fail_generate (times 0
// means every call), panic_generate, reject (validation failure with a
// message), error_validate, fail_evaluate, and fix (a from/to replacement
// used by the repair loop).
package harness
