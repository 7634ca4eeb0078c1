package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/evaluator"
	"github.com/studymesh/ale/internal/mastery"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/selector"
	"github.com/studymesh/ale/internal/store"
)

func newTestManager(t *testing.T, evals ...evaluator.MockResult) (*Manager, *evaluator.MockEvaluator, context.Context) {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	corpus := s.CorpusRepo()
	require.NoError(t, corpus.PutTopic(ctx, model.Topic{ID: "t1", CourseID: "c1", Name: "T", Language: "go"}))
	require.NoError(t, corpus.PutCoreLoop(ctx, model.CoreLoop{ID: "cl1", Name: "cl1", Type: model.CoreLoopDesign, TopicID: "t1", Language: "go"}))
	for _, id := range []string{"ex1", "ex2"} {
		require.NoError(t, corpus.PutExercise(ctx, model.Exercise{
			ID: id, CourseID: "c1", TopicID: "t1", CoreLoopIDs: []string{"cl1"},
			Difficulty: model.DifficultyMedium, Type: model.ExerciseProcedural, Analyzed: true,
		}))
	}

	sel := selector.New(corpus, s.ReviewRepo())
	mockEval := evaluator.NewMockEvaluator(evals...)
	agg := mastery.New(corpus, s.ReviewRepo(), s.MasteryRepo())
	mgr := New(s.SessionRepo(), corpus, sel, mockEval, agg)
	return mgr, mockEval, ctx
}

func createTestSession(t *testing.T, mgr *Manager, ctx context.Context, now time.Time) string {
	t.Helper()
	id, err := mgr.Create(ctx, CreateRequest{
		StudentID: "student-1",
		CourseID:  "c1",
		QuizType:  model.QuizRandom,
		Count:     2,
	}, now)
	require.NoError(t, err)
	return id
}

func TestCreate_FreezesQuestionOrder(t *testing.T) {
	mgr, _, ctx := newTestManager(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id := createTestSession(t, mgr, ctx, now)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, status.State)
	assert.Len(t, status.QuestionIDs, 2)
}

func TestNextQuestion_AdvancesAsAnswersAreRecorded(t *testing.T) {
	mgr, _, ctx := newTestManager(t, evaluator.MockResult{Result: evaluator.Result{Score: 1, Correct: true}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	idx, err := mgr.NextQuestion(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 0, *idx)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)

	_, err = mgr.SubmitAnswer(ctx, id, SubmitRequest{
		QuestionIdx: 0,
		ExerciseID:  status.QuestionIDs[0],
		UserAnswer:  "answer",
	}, now)
	require.NoError(t, err)

	idx, err = mgr.NextQuestion(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 1, *idx)
}

func TestSubmitAnswer_OutOfOrderRejected(t *testing.T) {
	mgr, _, ctx := newTestManager(t, evaluator.MockResult{Result: evaluator.Result{Score: 1, Correct: true}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)

	_, err = mgr.SubmitAnswer(ctx, id, SubmitRequest{
		QuestionIdx: 1,
		ExerciseID:  status.QuestionIDs[1],
		UserAnswer:  "answer",
	}, now)

	var oos *aleerr.OutOfOrderSubmission
	assert.ErrorAs(t, err, &oos)
}

func TestSubmitAnswer_AlreadyAnsweredRejected(t *testing.T) {
	mgr, _, ctx := newTestManager(t,
		evaluator.MockResult{Result: evaluator.Result{Score: 1, Correct: true}},
		evaluator.MockResult{Result: evaluator.Result{Score: 1, Correct: true}},
	)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)

	_, err = mgr.SubmitAnswer(ctx, id, SubmitRequest{
		QuestionIdx: 0,
		ExerciseID:  status.QuestionIDs[0],
		UserAnswer:  "answer",
	}, now)
	require.NoError(t, err)

	_, err = mgr.SubmitAnswer(ctx, id, SubmitRequest{
		QuestionIdx: 0,
		ExerciseID:  status.QuestionIDs[0],
		UserAnswer:  "answer again",
	}, now)

	var aa *aleerr.AlreadyAnswered
	assert.ErrorAs(t, err, &aa)
}

func TestSubmitAnswer_EvaluatorFailureDefaultsToIncorrectAndUpdatesSM2(t *testing.T) {
	mgr, _, ctx := newTestManager(t, evaluator.MockResult{Err: assertError{"boom"}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)

	result, err := mgr.SubmitAnswer(ctx, id, SubmitRequest{
		QuestionIdx: 0,
		ExerciseID:  status.QuestionIDs[0],
		UserAnswer:  "answer",
	}, now)
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, 1, result.NewReviewState.TotalAttempts)
}

func TestSubmitAnswer_EvaluatorFailureWithDryRunDoesNotMutate(t *testing.T) {
	mgr, _, ctx := newTestManager(t, evaluator.MockResult{Err: assertError{"boom"}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)

	_, err = mgr.SubmitAnswer(ctx, id, SubmitRequest{
		QuestionIdx: 0,
		ExerciseID:  status.QuestionIDs[0],
		UserAnswer:  "answer",
		DryRun:      true,
	}, now)

	var eu *aleerr.EvaluatorUnavailable
	assert.ErrorAs(t, err, &eu)

	idx, err := mgr.NextQuestion(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 0, *idx, "dry run must not record an answer")
}

func TestComplete_IsIdempotent(t *testing.T) {
	mgr, _, ctx := newTestManager(t,
		evaluator.MockResult{Result: evaluator.Result{Score: 1, Correct: true}},
		evaluator.MockResult{Result: evaluator.Result{Score: 0, Correct: false}},
	)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)
	for i, exID := range status.QuestionIDs {
		_, err := mgr.SubmitAnswer(ctx, id, SubmitRequest{
			QuestionIdx: i,
			ExerciseID:  exID,
			UserAnswer:  "answer",
		}, now)
		require.NoError(t, err)
	}

	first, err := mgr.Complete(ctx, id, now)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalQuestions)
	assert.Equal(t, 1, first.TotalCorrect)
	assert.Equal(t, 0.5, first.PercentCorrect)
	assert.False(t, first.Passed)

	second, err := mgr.Complete(ctx, id, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAbandon_TransitionsOpenSession(t *testing.T) {
	mgr, _, ctx := newTestManager(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := createTestSession(t, mgr, ctx, now)

	require.NoError(t, mgr.Abandon(ctx, id, now))

	status, err := mgr.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SessionAbandoned, status.State)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
