package depgraph

import (
	"sort"

	"github.com/roach88/snc/internal/ir"
)

// Plan is an ordered sequence of levels. Every node's dependencies that are
// part of the plan sit in strictly earlier levels; nodes within one level are
// mutually independent.
type Plan struct {
	Levels [][]Node `json:"levels"`
}

// Levels groups the whole graph by repeatedly extracting every unplaced node
// whose dependencies are all placed. Nodes within a level are in document order.
func (g *Graph) Levels() Plan {
	placed := make([]bool, len(g.nodes))
	remaining := len(g.nodes)
	plan := Plan{Levels: [][]Node{}}

	for remaining > 0 {
		var frontier []int
		for i := range g.nodes {
			if placed[i] {
				continue
			}
			ready := true
			for _, d := range g.deps[i] {
				if !placed[d] {
					ready = false
					break
				}
			}
			if ready {
				frontier = append(frontier, i)
			}
		}
		// Build rejects cycles, so an acyclic graph always has a frontier.
		if len(frontier) == 0 {
			break
		}
		for _, i := range frontier {
			placed[i] = true
		}
		remaining -= len(frontier)
		plan.Levels = append(plan.Levels, g.pick(frontier))
	}

	return plan
}

// Schedule returns the level plan restricted to nodes accepted by include.
// Empty levels are dropped; relative level order is preserved.
func (g *Graph) Schedule(include func(Node) bool) Plan {
	full := g.Levels()
	plan := Plan{Levels: [][]Node{}}
	for _, level := range full.Levels {
		var kept []Node
		for _, n := range level {
			if include(n) {
				kept = append(kept, n)
			}
		}
		if len(kept) > 0 {
			plan.Levels = append(plan.Levels, kept)
		}
	}
	return plan
}

// Len returns the total number of nodes in the plan.
func (p Plan) Len() int {
	n := 0
	for _, level := range p.Levels {
		n += len(level)
	}
	return n
}

// LevelOf maps each planned node to its level index.
func (p Plan) LevelOf() map[ir.IdentityKey]int {
	out := make(map[ir.IdentityKey]int, p.Len())
	for i, level := range p.Levels {
		for _, n := range level {
			out[n.Key] = i
		}
	}
	return out
}

// Keys returns the plan as identity-key strings, each level sorted.
func (p Plan) Keys() [][]string {
	out := make([][]string, len(p.Levels))
	for i, level := range p.Levels {
		keys := make([]string, len(level))
		for j, n := range level {
			keys[j] = n.Key.String()
		}
		sort.Strings(keys)
		out[i] = keys
	}
	return out
}

// Names returns the plan as bare token names, each level sorted.
func (p Plan) Names() [][]string {
	out := make([][]string, len(p.Levels))
	for i, level := range p.Levels {
		names := make([]string, len(level))
		for j, n := range level {
			names[j] = n.Key.Name
		}
		sort.Strings(names)
		out[i] = names
	}
	return out
}
