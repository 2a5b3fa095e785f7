// Package narrative parses bracket-delimited narrative documents into a
// forest of scene/component/function units and flattens that forest into
// identity-keyed token data.
//
// Grammar, one directive per line (case-insensitive, surrounding
// whitespace ignored):
//
//	[Scene: NAME]
//	[Component: NAME]
//	[Function]  or  [Function: NAME]
//
// Every other non-blank line is content of the innermost open unit.
// Dependency references are written inline as REF:NAME or [REF:NAME].
//
// Parsing never fails. Ambiguities are reported as warning Diagnostics
// alongside the parsed forest.
package narrative
