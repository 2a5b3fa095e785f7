package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/snc/internal/ir"
)

// marshalNames converts dependency names to canonical JSON TEXT for storage.
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := ir.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal dependency names: %w", err)
	}
	return string(data), nil
}

// unmarshalNames parses dependency names from JSON TEXT.
func unmarshalNames(s string) ([]string, error) {
	names := []string{}
	if s == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, fmt.Errorf("unmarshal dependency names: %w", err)
	}
	return names, nil
}

// marshalDiagnostics converts diagnostics to JSON TEXT for storage.
func marshalDiagnostics(diags []ir.Diagnostic) (string, error) {
	if diags == nil {
		diags = []ir.Diagnostic{}
	}
	data, err := json.Marshal(diags)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return string(data), nil
}

// unmarshalDiagnostics parses diagnostics from JSON TEXT. An empty list
// is returned as nil to match freshly built artifacts.
func unmarshalDiagnostics(s string) ([]ir.Diagnostic, error) {
	var diags []ir.Diagnostic
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &diags); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	if len(diags) == 0 {
		return nil, nil
	}
	return diags, nil
}

func nullScore(score *float64) sql.NullFloat64 {
	if score == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *score, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
