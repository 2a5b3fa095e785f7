// Package depgraph resolves token dependency names into a directed graph,
// orders it with Kahn's algorithm and groups it into levels.
//
// Nodes live in a flat arena; edges are indices into it. Tokens never hold
// references to one another.
package depgraph

import (
	"sort"

	"github.com/roach88/snc/internal/ir"
)

// Node is one token in the graph.
type Node struct {
	// ID is the persisted token id, or 0 when planning unpersisted data.
	ID              int64          `json:"id,omitempty"`
	Key             ir.IdentityKey `json:"key"`
	Order           int            `json:"order"`
	DependencyNames []string       `json:"dependency_names,omitempty"`
}

// Unresolved is a dependency name that matched no token.
type Unresolved struct {
	From ir.IdentityKey `json:"from"`
	Name string         `json:"name"`
}

// Graph is an acyclic dependency graph over one token generation.
// A Graph is immutable once built and safe to share between goroutines.
type Graph struct {
	nodes      []Node
	deps       [][]int // deps[i]: nodes that i depends on, ascending
	dependents [][]int // dependents[i]: nodes that depend on i, ascending
	order      []int   // topological order, dependencies first
	byKey      map[ir.IdentityKey]int
	unresolved []Unresolved
}

// NodesFromTokens builds graph nodes from persisted tokens.
func NodesFromTokens(tokens []ir.Token) []Node {
	nodes := make([]Node, len(tokens))
	for i, t := range tokens {
		nodes[i] = Node{ID: t.ID, Key: t.Key(), Order: t.Order, DependencyNames: t.DependencyNames}
	}
	return nodes
}

// NodesFromData builds graph nodes from freshly parsed token data.
func NodesFromData(data []ir.TokenData) []Node {
	nodes := make([]Node, len(data))
	for i, d := range data {
		nodes[i] = Node{Key: d.Key(), Order: d.Order, DependencyNames: d.DependencyNames}
	}
	return nodes
}

// Build resolves dependency names and verifies the graph is acyclic.
//
// A name resolves to every node with that name, of any kind, except the
// referencing node itself. Names that resolve to nothing produce no edge and
// are reported by Unresolved. A cycle fails with CycleDetectedError and no
// graph is returned.
func Build(nodes []Node) (*Graph, error) {
	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	g := &Graph{
		nodes:      sorted,
		deps:       make([][]int, len(sorted)),
		dependents: make([][]int, len(sorted)),
		byKey:      make(map[ir.IdentityKey]int, len(sorted)),
		unresolved: []Unresolved{},
	}

	byName := make(map[string][]int)
	for i, n := range sorted {
		g.byKey[n.Key] = i
		byName[n.Key.Name] = append(byName[n.Key.Name], i)
	}

	for i, n := range sorted {
		seen := make(map[int]bool)
		for _, name := range n.DependencyNames {
			targets := byName[name]
			resolved := false
			for _, j := range targets {
				if j == i {
					continue
				}
				resolved = true
				if !seen[j] {
					seen[j] = true
					g.deps[i] = append(g.deps[i], j)
					g.dependents[j] = append(g.dependents[j], i)
				}
			}
			if !resolved {
				g.unresolved = append(g.unresolved, Unresolved{From: n.Key, Name: name})
			}
		}
		sort.Ints(g.deps[i])
	}
	for j := range g.dependents {
		sort.Ints(g.dependents[j])
	}

	order, ok := g.kahn()
	if !ok {
		return nil, &CycleDetectedError{Path: g.cyclePath(order)}
	}
	g.order = order
	return g, nil
}

// kahn returns a topological order with dependencies first. ok is false when
// a cycle prevented some nodes from being placed.
func (g *Graph) kahn() (order []int, ok bool) {
	indegree := make([]int, len(g.nodes))
	queue := []int{}
	for i := range g.nodes {
		indegree[i] = len(g.deps[i])
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order = make([]int, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, d := range g.dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	return order, len(order) == len(g.nodes)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the nodes in document order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Lookup returns the node with the given identity key.
func (g *Graph) Lookup(key ir.IdentityKey) (Node, bool) {
	i, ok := g.byKey[key]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// DependenciesOf returns the nodes key depends on.
func (g *Graph) DependenciesOf(key ir.IdentityKey) []Node {
	i, ok := g.byKey[key]
	if !ok {
		return nil
	}
	return g.pick(g.deps[i])
}

// DependentsOf returns the nodes that depend on key.
func (g *Graph) DependentsOf(key ir.IdentityKey) []Node {
	i, ok := g.byKey[key]
	if !ok {
		return nil
	}
	return g.pick(g.dependents[i])
}

// Order returns the topological order, dependencies before dependents.
func (g *Graph) Order() []Node {
	return g.pick(g.order)
}

// Unresolved returns dependency names that matched no node.
func (g *Graph) Unresolved() []Unresolved {
	out := make([]Unresolved, len(g.unresolved))
	copy(out, g.unresolved)
	return out
}

// Edges returns every (from, to) pair where from depends on to.
func (g *Graph) Edges() [][2]ir.IdentityKey {
	var edges [][2]ir.IdentityKey
	for i, deps := range g.deps {
		for _, j := range deps {
			edges = append(edges, [2]ir.IdentityKey{g.nodes[i].Key, g.nodes[j].Key})
		}
	}
	return edges
}

func (g *Graph) pick(idx []int) []Node {
	out := make([]Node, len(idx))
	for k, i := range idx {
		out[k] = g.nodes[i]
	}
	return out
}
