package prereq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

func newTestGraph(t *testing.T) (*Graph, store.CorpusRepo, context.Context) {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	corpus := s.CorpusRepo()
	require.NoError(t, corpus.PutTopic(ctx, model.Topic{ID: "t1", CourseID: "c1", Name: "T", Language: "go"}))
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, corpus.PutCoreLoop(ctx, model.CoreLoop{ID: id, Name: id, Type: model.CoreLoopDesign, TopicID: "t1", Language: "go"}))
	}

	g, err := Load(ctx, s.PrereqRepo())
	require.NoError(t, err)
	return g, corpus, ctx
}

func TestAddEdge_RejectsDirectCycle(t *testing.T) {
	g, _, ctx := newTestGraph(t)

	require.NoError(t, g.AddEdge(ctx, "a", "b"))
	err := g.AddEdge(ctx, "b", "a")
	assert.ErrorContains(t, err, "cycle")
}

func TestAddEdge_RejectsTransitiveCycle(t *testing.T) {
	g, _, ctx := newTestGraph(t)

	require.NoError(t, g.AddEdge(ctx, "a", "b"))
	require.NoError(t, g.AddEdge(ctx, "b", "c"))
	err := g.AddEdge(ctx, "c", "a")
	assert.ErrorContains(t, err, "cycle")
}

func TestAddEdge_RejectsSelfLoop(t *testing.T) {
	g, _, ctx := newTestGraph(t)
	err := g.AddEdge(ctx, "a", "a")
	assert.ErrorContains(t, err, "cycle")
}

func TestPrereqsOf_TransitiveWalk(t *testing.T) {
	g, _, ctx := newTestGraph(t)

	require.NoError(t, g.AddEdge(ctx, "a", "b"))
	require.NoError(t, g.AddEdge(ctx, "b", "c"))
	require.NoError(t, g.AddEdge(ctx, "a", "d"))

	prereqs := g.PrereqsOf("c")
	assert.ElementsMatch(t, []string{"a", "b"}, prereqs)
}

func TestDependentsOf_TransitiveWalk(t *testing.T) {
	g, _, ctx := newTestGraph(t)

	require.NoError(t, g.AddEdge(ctx, "a", "b"))
	require.NoError(t, g.AddEdge(ctx, "b", "c"))

	deps := g.DependentsOf("a")
	assert.ElementsMatch(t, []string{"b", "c"}, deps)
}

func TestAddEdge_DiamondIsNotACycle(t *testing.T) {
	g, _, ctx := newTestGraph(t)

	require.NoError(t, g.AddEdge(ctx, "a", "b"))
	require.NoError(t, g.AddEdge(ctx, "a", "c"))
	require.NoError(t, g.AddEdge(ctx, "b", "d"))
	require.NoError(t, g.AddEdge(ctx, "c", "d"))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, g.PrereqsOf("d"))
}
