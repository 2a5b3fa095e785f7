package depgraph

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Export is the JSON form of a graph.
type Export struct {
	Nodes      []Node       `json:"nodes"`
	Edges      []ExportEdge `json:"edges"`
	Levels     [][]string   `json:"levels"`
	Unresolved []Unresolved `json:"unresolved"`
}

// ExportEdge is one "from depends on to" edge.
type ExportEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Export returns a serializable view of the graph.
func (g *Graph) Export() Export {
	edges := []ExportEdge{}
	for _, e := range g.Edges() {
		edges = append(edges, ExportEdge{From: e[0].String(), To: e[1].String()})
	}
	return Export{
		Nodes:      g.Nodes(),
		Edges:      edges,
		Levels:     g.Levels().Keys(),
		Unresolved: g.Unresolved(),
	}
}

// WriteText writes one line per node: its level, key and dependencies.
func (g *Graph) WriteText(w io.Writer) error {
	levelOf := g.Levels().LevelOf()
	for _, n := range g.nodes {
		deps := g.DependenciesOf(n.Key)
		names := make([]string, len(deps))
		for i, d := range deps {
			names[i] = d.Key.String()
		}
		line := fmt.Sprintf("L%d %s", levelOf[n.Key], n.Key)
		if len(names) > 0 {
			line += " -> " + strings.Join(names, ", ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for _, u := range g.unresolved {
		if _, err := fmt.Fprintf(w, "unresolved %s -> %s\n", u.From, u.Name); err != nil {
			return err
		}
	}
	return nil
}

// WriteDOT writes the graph in Graphviz DOT format. Nodes in the same level
// share a rank.
func (g *Graph) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph snc {\n")
	b.WriteString("  rankdir=BT;\n")
	b.WriteString("  node [shape=box];\n")

	for i, level := range g.Levels().Levels {
		fmt.Fprintf(&b, "  { rank=same; // level %d\n", i)
		for _, n := range level {
			fmt.Fprintf(&b, "    %s [label=%s];\n", strconv.Quote(n.Key.String()), strconv.Quote(n.Key.Kind.Prefix()+" "+n.Key.Name))
		}
		b.WriteString("  }\n")
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "  %s -> %s;\n", strconv.Quote(e[0].String()), strconv.Quote(e[1].String()))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}
