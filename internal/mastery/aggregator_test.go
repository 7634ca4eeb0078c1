package mastery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, store.CorpusRepo, context.Context) {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	corpus := s.CorpusRepo()

	require.NoError(t, corpus.PutTopic(ctx, model.Topic{ID: "t1", CourseID: "c1", Name: "Topic", Language: "go"}))
	require.NoError(t, corpus.PutCoreLoop(ctx, model.CoreLoop{ID: "primary", Name: "primary", Type: model.CoreLoopDesign, TopicID: "t1", Language: "go"}))
	require.NoError(t, corpus.PutCoreLoop(ctx, model.CoreLoop{ID: "secondary", Name: "secondary", Type: model.CoreLoopDesign, TopicID: "t1", Language: "go"}))

	agg := New(corpus, s.ReviewRepo(), s.MasteryRepo())
	return agg, corpus, ctx
}

func TestRecordAnswer_BothCoreLoopsGetAttemptIncrement(t *testing.T) {
	agg, _, ctx := newTestAggregator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ex := model.Exercise{
		ID:          "ex1",
		CourseID:    "c1",
		TopicID:     "t1",
		CoreLoopIDs: []string{"primary", "secondary"},
		Analyzed:    true,
	}

	result, err := agg.RecordAnswer(ctx, "student-1", ex, 1.0, now)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ReviewStates["primary"].TotalAttempts)
	assert.Equal(t, 1, result.ReviewStates["secondary"].TotalAttempts)
}

func TestRecordAnswer_SecondaryMovementAtMostHalfPrimary(t *testing.T) {
	agg, _, ctx := newTestAggregator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ex := model.Exercise{
		ID:          "ex1",
		CourseID:    "c1",
		TopicID:     "t1",
		CoreLoopIDs: []string{"primary", "secondary"},
		Analyzed:    true,
	}

	result, err := agg.RecordAnswer(ctx, "student-1", ex, 1.0, now)
	require.NoError(t, err)

	primaryMove := result.ReviewStates["primary"].MasteryScore
	secondaryMove := result.ReviewStates["secondary"].MasteryScore

	assert.InDelta(t, AlphaPrimary*WeightPrimary, primaryMove, 1e-9)
	assert.InDelta(t, AlphaSecondary*WeightSecondary, secondaryMove, 1e-9)
	assert.LessOrEqual(t, secondaryMove, primaryMove/2+1e-9)
}

func TestRecordAnswer_CascadesToTopicAndCourseMastery(t *testing.T) {
	agg, _, ctx := newTestAggregator(t)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ex := model.Exercise{ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"primary"}, Analyzed: true}

	_, err := agg.RecordAnswer(ctx, "student-1", ex, 1.0, now)
	require.NoError(t, err)

	topicMastery, err := agg.masteryStore.GetTopicMastery(ctx, "student-1", "t1")
	require.NoError(t, err)
	assert.Greater(t, topicMastery.MasteryScore, 0.0)

	courseMastery, err := agg.masteryStore.GetCourseMastery(ctx, "student-1", "c1")
	require.NoError(t, err)
	assert.Greater(t, courseMastery.MasteryScore, 0.0)
}

func TestRecordAnswer_CorrectAttemptsThreshold(t *testing.T) {
	agg, _, ctx := newTestAggregator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ex := model.Exercise{ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"primary"}, Analyzed: true}

	low, err := agg.RecordAnswer(ctx, "student-1", ex, 0.5, now)
	require.NoError(t, err)
	assert.Equal(t, 0, low.ReviewStates["primary"].CorrectAttempts)

	high, err := agg.RecordAnswer(ctx, "student-1", ex, 0.7, now)
	require.NoError(t, err)
	assert.Equal(t, 1, high.ReviewStates["primary"].CorrectAttempts)
}
