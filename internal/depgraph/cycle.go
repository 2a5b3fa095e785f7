package depgraph

import (
	"sort"

	"github.com/roach88/snc/internal/ir"
)

// cyclePath explains why Kahn's algorithm stalled. placed holds the nodes
// Kahn did order; the strongly connected components of the rest contain at
// least one cycle, and the first one (by document order) is returned as a
// closed path.
func (g *Graph) cyclePath(placed []int) []ir.IdentityKey {
	done := make(map[int]bool, len(placed))
	for _, i := range placed {
		done[i] = true
	}

	for _, scc := range g.tarjanSCC(done) {
		if len(scc) < 2 {
			continue
		}
		path := g.reconstructCyclePath(scc)
		keys := make([]ir.IdentityKey, len(path))
		for k, i := range path {
			keys[k] = g.nodes[i].Key
		}
		return keys
	}
	return []ir.IdentityKey{}
}

// tarjanSCC finds strongly connected components among nodes not in skip.
// Components are returned in ascending order of their smallest member, each
// sorted ascending.
func (g *Graph) tarjanSCC(skip map[int]bool) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.deps[v] {
			if skip[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}

	for v := range g.nodes {
		if skip[v] {
			continue
		}
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

// reconstructCyclePath walks dependency edges inside an SCC from its first
// member until it returns there. The BFS guarantees the shortest such walk.
func (g *Graph) reconstructCyclePath(scc []int) []int {
	members := make(map[int]bool, len(scc))
	for _, v := range scc {
		members[v] = true
	}

	start := scc[0]
	prev := map[int]int{}
	queue := []int{start}
	visited := map[int]bool{start: true}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.deps[v] {
			if !members[w] {
				continue
			}
			if w == start {
				path := []int{start}
				for cur := v; cur != start; cur = prev[cur] {
					path = append(path, cur)
				}
				// path is start, v, ..., reversed; flip the middle
				for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return append(path, start)
			}
			if !visited[w] {
				visited[w] = true
				prev[w] = v
				queue = append(queue, w)
			}
		}
	}
	return []int{start, start}
}
