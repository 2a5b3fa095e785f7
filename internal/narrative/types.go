package narrative

import (
	"fmt"
	"strings"

	"github.com/roach88/snc/internal/ir"
)

// DefaultSceneName names the scene synthesized for content that appears
// before any explicit scene header.
const DefaultSceneName = "_root"

// Unit is one node of the parsed narrative forest.
type Unit struct {
	Kind ir.Kind
	Name string

	// Line is the 1-based line of the unit's header; 0 for a synthesized scene.
	Line int

	// Lines holds the unit's own trimmed, non-blank content lines.
	// Children's lines are not included.
	Lines []string

	Children []*Unit

	// Dependencies is the sorted set of names referenced from Lines.
	Dependencies []string

	// Unnamed is true when the header carried no name and Name is a fallback.
	Unnamed bool

	// Synthesized is true for a scene the parser created to hold orphan content.
	Synthesized bool
}

// Content returns the unit's lines joined with newlines.
func (u *Unit) Content() string {
	return strings.Join(u.Lines, "\n")
}

// Key returns the unit's identity key.
func (u *Unit) Key() ir.IdentityKey {
	return ir.IdentityKey{Kind: u.Kind, Name: u.Name}
}

// Walk visits u and its descendants in depth-first preorder.
func (u *Unit) Walk(fn func(*Unit)) {
	fn(u)
	for _, c := range u.Children {
		c.Walk(fn)
	}
}

// Count returns the number of units in the forest.
func Count(forest []*Unit) int {
	n := 0
	for _, u := range forest {
		u.Walk(func(*Unit) { n++ })
	}
	return n
}

// Diagnostic codes emitted by Parse.
const (
	CodeUnrecognizedHeader = "SNCW001"
	CodeUnitCountMismatch  = "SNCW002"
	CodeSynthesizedScene   = "SNCW003"
	CodeFallbackName       = "SNCW004"
	CodeEmptyReference     = "SNCW005"
	CodeEmptyUnit          = "SNCW006"
)

// Diagnostic is a non-fatal message produced while parsing.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s %s: %s", d.Line, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
}

func warning(line int, code, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: "warning",
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
	}
}

func info(line int, code, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: "info",
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
	}
}
