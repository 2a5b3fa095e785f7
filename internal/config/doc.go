// Package config loads snc configuration.
//
// Values are layered, lowest priority first:
//
//  1. Defaults (Default)
//  2. A configuration file, format chosen by extension: .yaml, .yml, .json or .cue
//  3. SNC_* environment variables
//
// The merged result is checked with go-playground/validator struct tags.
// CUE files must evaluate to a concrete value. Durations are written as Go
// duration strings ("200ms", "30s").
package config
