package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/snc/internal/ir"
)

// Diagnostic codes for failures the compiler records on artifacts itself.
const (
	CodeGenerationFailed = "SNCE001"
	CodeValidationFailed = "SNCE002"
	CodeTaskPanicked     = "SNCE003"
	CodeInvalidNoDetail  = "SNCE004"
)

// SummarizeDiagnostics renders diagnostics for a Fixer, one per line as
// "file(line,char): message". Diagnostics without a file are rendered as
// the bare message.
func SummarizeDiagnostics(diags []ir.Diagnostic) string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.File == "" {
			lines = append(lines, d.Message)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s(%d,%d): %s", d.File, d.Line, d.Char, d.Message))
	}
	return strings.Join(lines, "\n")
}

func errorDiagnostic(code string, err error) ir.Diagnostic {
	return ir.Diagnostic{Severity: "error", Code: code, Message: err.Error()}
}
