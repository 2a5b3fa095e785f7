// Package ir provides the shared data types of the narrative compilation
// pipeline.
//
// All other internal packages import ir; ir imports nothing internal. This
// keeps the token, artifact and diff shapes as the foundational layer with
// no circular dependencies.
//
// Key design constraints:
//   - Identity across parses is the IdentityKey (kind, name), never the
//     per-parse InstanceUUID
//   - Content hashes are computed only by ContentHash (domain separated,
//     NFC normalised SHA-256)
//   - Dependencies are names on tokens and indices in graphs; tokens never
//     hold references to other tokens
//   - All JSON tags use snake_case
package ir
