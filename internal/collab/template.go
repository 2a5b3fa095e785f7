package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/ir"
)

// TemplateGenerator renders narrative content into a TypeScript module
// without calling any service. Output depends only on the content, so it
// is stable across runs.
type TemplateGenerator struct{}

var _ compiler.Generator = TemplateGenerator{}

// Generate implements compiler.Generator.
func (TemplateGenerator) Generate(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("// Code generated by snc. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "// content: %s\n\n", ir.ContentHash(content)[:12])
	b.WriteString("export const narrative: readonly string[] = [\n")
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		lit, err := json.Marshal(line)
		if err != nil {
			return "", fmt.Errorf("template: %w", err)
		}
		fmt.Fprintf(&b, "  %s,\n", lit)
	}
	b.WriteString("];\n")
	return b.String(), nil
}
