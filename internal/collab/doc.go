// Package collab provides concrete collaborators for the compiler: an
// offline template generator, an HTTP client for a remote code service
// guarded by a circuit breaker, and a validator that runs an external type
// checker and parses its diagnostics.
package collab
