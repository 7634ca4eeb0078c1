package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/prereq"
	"github.com/studymesh/ale/internal/store"
)

func newTestAdvisor(t *testing.T) (*Advisor, store.CorpusRepo, store.ReviewRepo, *prereq.Graph, context.Context) {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	corpus := s.CorpusRepo()
	require.NoError(t, corpus.PutTopic(ctx, model.Topic{ID: "t1", CourseID: "c1", Name: "T", Language: "go"}))
	for _, id := range []string{"basics", "advanced"} {
		require.NoError(t, corpus.PutCoreLoop(ctx, model.CoreLoop{ID: id, Name: id, Type: model.CoreLoopDesign, TopicID: "t1", Language: "go"}))
	}

	g, err := prereq.Load(ctx, s.PrereqRepo())
	require.NoError(t, err)

	adv := New(corpus, s.ReviewRepo(), g)
	return adv, corpus, s.ReviewRepo(), g, ctx
}

func TestDepth_Bands(t *testing.T) {
	adv, _, reviews, _, ctx := newTestAdvisor(t)

	_, err := reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.1
		return rs
	})
	require.NoError(t, err)
	d, err := adv.Depth(ctx, "student-1", "basics")
	require.NoError(t, err)
	assert.Equal(t, DepthBasic, d)

	_, err = reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.5
		return rs
	})
	require.NoError(t, err)
	d, err = adv.Depth(ctx, "student-1", "basics")
	require.NoError(t, err)
	assert.Equal(t, DepthMedium, d)

	_, err = reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.9
		return rs
	})
	require.NoError(t, err)
	d, err = adv.Depth(ctx, "student-1", "basics")
	require.NoError(t, err)
	assert.Equal(t, DepthAdvanced, d)
}

func TestShouldShowPrerequisites_LowMasteryAlwaysShows(t *testing.T) {
	adv, _, reviews, _, ctx := newTestAdvisor(t)
	_, err := reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.1
		return rs
	})
	require.NoError(t, err)

	show, err := adv.ShouldShowPrerequisites(ctx, "student-1", "basics")
	require.NoError(t, err)
	assert.True(t, show)
}

func TestShouldShowPrerequisites_MediumMasteryNeedsHighFailureRate(t *testing.T) {
	adv, _, reviews, _, ctx := newTestAdvisor(t)
	_, err := reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.5
		rs.RecentOutcomes = []bool{false, false, true, true, true} // 0.4 failure rate
		return rs
	})
	require.NoError(t, err)

	show, err := adv.ShouldShowPrerequisites(ctx, "student-1", "basics")
	require.NoError(t, err)
	assert.False(t, show, "exactly 0.40 is not > 0.40")

	_, err = reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.RecentOutcomes = []bool{false, false, false, false, true} // 0.8 failure rate
		return rs
	})
	require.NoError(t, err)

	show, err = adv.ShouldShowPrerequisites(ctx, "student-1", "basics")
	require.NoError(t, err)
	assert.True(t, show)
}

func TestLearn_BlockedByWeakPrerequisiteUnlessForced(t *testing.T) {
	adv, _, reviews, g, ctx := newTestAdvisor(t)
	require.NoError(t, g.AddEdge(ctx, "basics", "advanced"))

	_, err := reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.1
		return rs
	})
	require.NoError(t, err)

	err = adv.Learn(ctx, "student-1", "advanced", false)
	var blocked *aleerr.PrerequisiteBlocked
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, []string{"basics"}, blocked.WeakPrereqs)

	assert.NoError(t, adv.Learn(ctx, "student-1", "advanced", true))
}

func TestGaps_BandsBySeverity(t *testing.T) {
	adv, _, reviews, _, ctx := newTestAdvisor(t)

	_, err := reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.1
		return rs
	})
	require.NoError(t, err)
	_, err = reviews.Update(ctx, "student-1", "advanced", func(rs model.ReviewState) model.ReviewState {
		rs.MasteryScore = 0.4
		return rs
	})
	require.NoError(t, err)

	gaps, err := adv.Gaps(ctx, "student-1", "c1")
	require.NoError(t, err)
	require.Len(t, gaps, 2)

	byID := map[string]Gap{}
	for _, g := range gaps {
		byID[g.CoreLoopID] = g
	}
	assert.Equal(t, SeverityHigh, byID["basics"].Severity)
	assert.Equal(t, SeverityLow, byID["advanced"].Severity)
}

func TestLearningPath_OrdersByTierThenDedupsAndTruncates(t *testing.T) {
	adv, corpus, reviews, _, ctx := newTestAdvisor(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, corpus.PutExercise(ctx, model.Exercise{
		ID: "ex1", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"basics"},
		Difficulty: model.DifficultyEasy, Analyzed: true,
	}))
	require.NoError(t, corpus.PutExercise(ctx, model.Exercise{
		ID: "ex2", CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"advanced"},
		Difficulty: model.DifficultyHard, Analyzed: true,
	}))

	past := now.Add(-48 * time.Hour)
	_, err := reviews.Update(ctx, "student-1", "basics", func(rs model.ReviewState) model.ReviewState {
		rs.TotalAttempts = 1
		rs.NextReview = &past
		return rs
	})
	require.NoError(t, err)

	path, err := adv.LearningPath(ctx, "student-1", "c1", 10, now)
	require.NoError(t, err)

	require.Len(t, path, 2)
	assert.Equal(t, "basics", path[0].CoreLoopID)
	assert.Equal(t, "high", path[0].Urgency)
	assert.Equal(t, "advanced", path[1].CoreLoopID)
	assert.Equal(t, "low", path[1].Urgency)

	truncated, err := adv.LearningPath(ctx, "student-1", "c1", 1, now)
	require.NoError(t, err)
	assert.Len(t, truncated, 1)
}
