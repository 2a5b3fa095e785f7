package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/narrative"
)

func TestLevelsIndependentNodesShareLevel(t *testing.T) {
	g, err := Build([]Node{scene("C", 0), scene("A", 1), scene("B", 2, "A", "C")})
	require.NoError(t, err)

	plan := g.Levels()
	require.Len(t, plan.Levels, 2)
	assert.Equal(t, [][]string{{"A", "C"}, {"B"}}, plan.Names())
	assert.Equal(t, "C", plan.Levels[0][0].Key.Name, "levels keep document order")
	assert.Equal(t, 3, plan.Len())
}

func TestLevelsValidity(t *testing.T) {
	nodes := []Node{
		scene("a", 0),
		scene("b", 1, "a"),
		scene("c", 2, "a"),
		scene("d", 3, "b", "c"),
		scene("e", 4, "d", "a"),
		scene("f", 5),
		scene("g", 6, "f", "e"),
	}
	g, err := Build(nodes)
	require.NoError(t, err)

	levelOf := g.Levels().LevelOf()
	require.Len(t, levelOf, len(nodes))
	for _, e := range g.Edges() {
		assert.Greater(t, levelOf[e[0]], levelOf[e[1]], "%s must be after %s", e[0], e[1])
	}
	assert.Equal(t, 0, levelOf[ir.IdentityKey{Kind: ir.KindScene, Name: "f"}])
	assert.Equal(t, 4, levelOf[ir.IdentityKey{Kind: ir.KindScene, Name: "g"}])
}

func TestLevelsNonASCIIReferencedName(t *testing.T) {
	data, _ := narrative.Tokenize("[Scene:Main]\nREF:Café\n[Scene:Café]\nbody\n", &ir.SequenceGenerator{})
	g, err := Build(NodesFromData(data))
	require.NoError(t, err)

	assert.Empty(t, g.Unresolved())
	assert.Equal(t, [][]string{{"Café"}, {"Main"}}, g.Levels().Names())
}

func TestLevelsEmptyGraph(t *testing.T) {
	g, err := Build(nil)
	require.NoError(t, err)

	plan := g.Levels()
	assert.NotNil(t, plan.Levels)
	assert.Empty(t, plan.Levels)
	assert.Equal(t, 0, plan.Len())
}

func TestScheduleFiltersAndDropsEmptyLevels(t *testing.T) {
	g, err := Build([]Node{
		scene("base", 0),
		scene("mid", 1, "base"),
		scene("top", 2, "mid"),
		scene("other", 3),
	})
	require.NoError(t, err)

	work := map[string]bool{"top": true, "other": true}
	plan := g.Schedule(func(n Node) bool { return work[n.Key.Name] })

	assert.Equal(t, [][]string{{"other"}, {"top"}}, plan.Names())
	assert.Equal(t, [][]string{{"scene:other"}, {"scene:top"}}, plan.Keys())
}

func TestScheduleNothing(t *testing.T) {
	g, err := Build([]Node{scene("a", 0)})
	require.NoError(t, err)

	plan := g.Schedule(func(Node) bool { return false })
	assert.Empty(t, plan.Levels)
}
