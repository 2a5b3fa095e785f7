package collab

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/snc/internal/ir"
)

var (
	// tscDiagRE matches "file(line,char): severity CODE: message".
	tscDiagRE = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\):\s*(error|warning|info)\s+([A-Za-z]+\d+):\s*(.*)$`)
	// locatedRE matches "file(line,char): message" without severity or code.
	locatedRE = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\):\s*(.*)$`)
)

// ParseDiagnostics parses type checker output, one diagnostic per line.
// Lines in the "file(line,char): error CODE: message" form become fully
// structured diagnostics; other non-blank lines become message-only
// diagnostics with severity "error". File paths are reduced to their base
// name so diagnostics do not depend on temporary directories.
func ParseDiagnostics(output string) []ir.Diagnostic {
	var diags []ir.Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		diags = append(diags, parseDiagnosticLine(line))
	}
	return diags
}

func parseDiagnosticLine(line string) ir.Diagnostic {
	if m := tscDiagRE.FindStringSubmatch(line); m != nil {
		return ir.Diagnostic{
			File:     filepath.Base(m[1]),
			Line:     atoi(m[2]),
			Char:     atoi(m[3]),
			Severity: m[4],
			Code:     m[5],
			Message:  strings.TrimSpace(m[6]),
		}
	}
	if m := locatedRE.FindStringSubmatch(line); m != nil {
		return ir.Diagnostic{
			File:     filepath.Base(m[1]),
			Line:     atoi(m[2]),
			Char:     atoi(m[3]),
			Severity: "error",
			Message:  strings.TrimSpace(m[4]),
		}
	}
	return ir.Diagnostic{Severity: "error", Message: line}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
