package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

func newTestIngester(t *testing.T) (*Ingester, store.CorpusRepo, context.Context) {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	corpus := s.CorpusRepo()
	require.NoError(t, corpus.PutTopic(ctx, model.Topic{ID: "t1", CourseID: "c1", Name: "T", Language: "go"}))
	require.NoError(t, corpus.PutCoreLoop(ctx, model.CoreLoop{ID: "cl1", Name: "cl1", Type: model.CoreLoopDesign, TopicID: "t1", Language: "go"}))

	return New(corpus), corpus, ctx
}

func TestIngest_ValidExerciseIsStored(t *testing.T) {
	in, corpus, ctx := newTestIngester(t)

	err := in.Ingest(ctx, []model.Exercise{{
		ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"cl1"},
		Difficulty: model.DifficultyMedium, Type: model.ExerciseProcedural, Analyzed: true,
	}})
	require.NoError(t, err)

	stored, err := corpus.GetExercise(ctx, "ex1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"cl1"}, stored.CoreLoopIDs)
}

func TestIngest_RejectsUnanalyzed(t *testing.T) {
	in, _, ctx := newTestIngester(t)

	err := in.Ingest(ctx, []model.Exercise{{
		ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"cl1"}, Analyzed: false,
	}})
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Error(), "analyzed must be true")
}

func TestIngest_RejectsMissingCoreLoop(t *testing.T) {
	in, _, ctx := newTestIngester(t)

	err := in.Ingest(ctx, []model.Exercise{{
		ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"nonexistent"}, Analyzed: true,
	}})
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Error(), "primary core loop nonexistent does not exist")
}

func TestIngest_RejectsNoCoreLoops(t *testing.T) {
	in, _, ctx := newTestIngester(t)

	err := in.Ingest(ctx, []model.Exercise{{
		ID: "ex1", CourseID: "c1", TopicID: "t1", Analyzed: true,
	}})
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Error(), "no primary core loop materialized")
}

func TestIngest_WholeBatchRejectedOnAnyFailure(t *testing.T) {
	in, corpus, ctx := newTestIngester(t)

	err := in.Ingest(ctx, []model.Exercise{
		{ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"cl1"}, Analyzed: true},
		{ID: "ex2", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"nonexistent"}, Analyzed: true},
	})
	require.Error(t, err)

	stored, err := corpus.GetExercise(ctx, "ex1")
	require.NoError(t, err)
	assert.Nil(t, stored, "valid exercise in a rejected batch must not be persisted")
}
