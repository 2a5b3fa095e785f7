package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/snc/internal/ir"
)

func TestParseDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []ir.Diagnostic
	}{
		{
			name:   "typescript error",
			output: "/tmp/snc-validate-1/unit.ts(10,5): error TS2307: Cannot find module 'x'.",
			want: []ir.Diagnostic{{
				File: "unit.ts", Line: 10, Char: 5, Severity: "error", Code: "TS2307",
				Message: "Cannot find module 'x'.",
			}},
		},
		{
			name:   "warning",
			output: "unit.ts(1,1): warning TS6133: 'a' is declared but never used.",
			want: []ir.Diagnostic{{
				File: "unit.ts", Line: 1, Char: 1, Severity: "warning", Code: "TS6133",
				Message: "'a' is declared but never used.",
			}},
		},
		{
			name:   "located without code",
			output: "unit.ts(3,4): something odd",
			want: []ir.Diagnostic{{
				File: "unit.ts", Line: 3, Char: 4, Severity: "error", Message: "something odd",
			}},
		},
		{
			name:   "unparsable lines and blanks",
			output: "\n  Found 2 errors.  \n\n",
			want:   []ir.Diagnostic{{Severity: "error", Message: "Found 2 errors."}},
		},
		{
			name:   "empty",
			output: "",
			want:   nil,
		},
		{
			name: "several",
			output: "unit.ts(1,2): error TS1005: ';' expected.\n" +
				"unit.ts(4,1): error TS1128: Declaration or statement expected.\n",
			want: []ir.Diagnostic{
				{File: "unit.ts", Line: 1, Char: 2, Severity: "error", Code: "TS1005", Message: "';' expected."},
				{File: "unit.ts", Line: 4, Char: 1, Severity: "error", Code: "TS1128", Message: "Declaration or statement expected."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDiagnostics(tt.output))
		})
	}
}

func TestParseDiagnostics_RoundTripsThroughString(t *testing.T) {
	d := ir.Diagnostic{File: "unit.ts", Line: 2, Char: 7, Severity: "error", Code: "TS2304", Message: "Cannot find name 'y'."}
	assert.Equal(t, []ir.Diagnostic{d}, ParseDiagnostics(d.String()))
}
