package narrative

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/snc/internal/ir"
)

var (
	sceneRE     = regexp.MustCompile(`(?i)^\s*\[Scene\s*:\s*(.*?)\]\s*$`)
	componentRE = regexp.MustCompile(`(?i)^\s*\[Component\s*:\s*(.*?)\]\s*$`)
	functionRE  = regexp.MustCompile(`(?i)^\s*\[Function(?:\s*:\s*(.*?))?\]\s*$`)
	// refRE matches [REF:NAME] (NAME may contain spaces) or bare REF:NAME.
	// The bracketed form is tried first so "[REF:a b]" yields "a b", not "a".
	// A bare NAME is a run of Unicode letters, marks, digits and underscores.
	refRE = regexp.MustCompile(`\[REF\s*:\s*([^\]]*?)\s*\]|REF\s*:\s*([\p{L}\p{M}\p{N}_]+)`)
	// headerLikeRE matches lines that look like a unit header.
	headerLikeRE = regexp.MustCompile(`^\[\s*([A-Za-z]+)\s*(?::[^\]]*)?\]$`)
)

// parser is a single-pass line scanner holding at most one open unit per kind.
type parser struct {
	forest    []*Unit
	scene     *Unit
	component *Unit
	function  *Unit

	headers    int
	headerLike int
	diags      []Diagnostic
}

// Parse turns narrative text into a forest of scenes. Content that appears
// outside any scene is placed in a synthesized scene so it is never dropped.
// Parse never fails; ambiguities are returned as diagnostics.
func Parse(text string) ([]*Unit, []Diagnostic) {
	p := &parser{}

	text = strings.TrimPrefix(text, "\ufeff")
	for i, raw := range strings.Split(text, "\n") {
		p.line(i+1, strings.TrimSpace(raw))
	}
	p.finish()

	return p.forest, p.diags
}

func (p *parser) line(n int, line string) {
	if line == "" {
		return
	}

	if m := sceneRE.FindStringSubmatch(line); m != nil {
		p.headers++
		p.closeFunction()
		p.closeComponent()
		p.closeScene()
		p.scene = newUnit(ir.KindScene, m[1], n)
		p.forest = append(p.forest, p.scene)
		return
	}

	if m := componentRE.FindStringSubmatch(line); m != nil {
		p.headers++
		p.closeFunction()
		p.closeComponent()
		c := newUnit(ir.KindComponent, m[1], n)
		parent := p.openScene(n)
		parent.Children = append(parent.Children, c)
		p.component = c
		return
	}

	if m := functionRE.FindStringSubmatch(line); m != nil {
		p.headers++
		p.closeFunction()
		f := newUnit(ir.KindFunction, m[1], n)
		parent := p.component
		if parent == nil {
			parent = p.openScene(n)
		}
		parent.Children = append(parent.Children, f)
		p.function = f
		return
	}

	if m := headerLikeRE.FindStringSubmatch(line); m != nil && !strings.EqualFold(m[1], "REF") {
		p.headerLike++
		p.diags = append(p.diags, warning(n, CodeUnrecognizedHeader,
			"bracket line %q is not a scene, component or function header; treated as content", line))
	}

	u := p.innermost(n)
	u.Lines = append(u.Lines, line)
}

// innermost returns the deepest open unit, synthesizing a scene if none is open.
func (p *parser) innermost(n int) *Unit {
	switch {
	case p.function != nil:
		return p.function
	case p.component != nil:
		return p.component
	default:
		return p.openScene(n)
	}
}

// openScene returns the open scene, synthesizing the default scene if needed.
func (p *parser) openScene(n int) *Unit {
	if p.scene == nil {
		p.scene = &Unit{Kind: ir.KindScene, Name: DefaultSceneName, Synthesized: true}
		p.forest = append(p.forest, p.scene)
		p.diags = append(p.diags, info(n, CodeSynthesizedScene,
			"content before the first scene header placed in scene %q", DefaultSceneName))
	}
	return p.scene
}

func (p *parser) closeFunction()  { p.function = nil }
func (p *parser) closeComponent() { p.component = nil }
func (p *parser) closeScene()     { p.scene = nil }

// finish closes any open function, then component, then scene, and runs the
// naming and dependency passes over the whole forest.
func (p *parser) finish() {
	p.closeFunction()
	p.closeComponent()
	p.closeScene()

	p.assignFallbackNames()
	for _, u := range p.forest {
		p.extractDependencies(u)
	}

	for _, u := range p.forest {
		u.Walk(func(u *Unit) {
			if len(u.Lines) == 0 && len(u.Children) == 0 {
				p.diags = append(p.diags, warning(u.Line, CodeEmptyUnit,
					"%s %q has no content", u.Kind, u.Name))
			}
		})
	}

	if p.headerLike > 0 {
		p.diags = append(p.diags, warning(0, CodeUnitCountMismatch,
			"recognized %d unit headers out of %d bracket lines", p.headers, p.headers+p.headerLike))
	}
}

// assignFallbackNames names unnamed units from their content, in document
// order. Identical fallbacks of one kind get "_2", "_3" suffixes.
func (p *parser) assignFallbackNames() {
	seen := make(map[string]int)
	for _, u := range p.forest {
		u.Walk(func(u *Unit) {
			if !u.Unnamed {
				return
			}
			base := ir.FallbackName(u.Kind, u.Content())
			seen[base]++
			u.Name = base
			if seen[base] > 1 {
				u.Name = fmt.Sprintf("%s_%d", base, seen[base])
			}
			p.diags = append(p.diags, info(u.Line, CodeFallbackName,
				"unnamed %s named %q", u.Kind, u.Name))
		})
	}
}

// extractDependencies collects each unit's own references. Child references
// are not merged into the parent.
func (p *parser) extractDependencies(u *Unit) {
	set := make(map[string]struct{})
	for _, line := range u.Lines {
		for _, m := range refRE.FindAllStringSubmatch(line, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			name = strings.TrimSpace(name)
			if name == "" {
				p.diags = append(p.diags, warning(u.Line, CodeEmptyReference,
					"empty reference in %s %q", u.Kind, u.Name))
				continue
			}
			set[name] = struct{}{}
		}
	}

	u.Dependencies = make([]string, 0, len(set))
	for name := range set {
		u.Dependencies = append(u.Dependencies, name)
	}
	sort.Strings(u.Dependencies)

	for _, c := range u.Children {
		p.extractDependencies(c)
	}
}

func newUnit(kind ir.Kind, name string, line int) *Unit {
	name = strings.TrimSpace(name)
	return &Unit{
		Kind:    kind,
		Name:    name,
		Line:    line,
		Unnamed: name == "",
	}
}
