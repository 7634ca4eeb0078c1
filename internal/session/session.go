// Package session implements the Session Manager: the state machine
// that turns a frozen list of exercises into an answerable quiz,
// running each submitted answer through the Answer Evaluator, the
// Quality Mapper, the SM-2 Scheduler, and the Mastery Aggregator inside
// a single transaction boundary.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/evaluator"
	"github.com/studymesh/ale/internal/mastery"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/selector"
	"github.com/studymesh/ale/internal/store"
)

// CreateRequest describes a new quiz session.
type CreateRequest struct {
	StudentID string
	CourseID  string
	QuizType  model.QuizType
	Count     int
	Filters   model.Filters
}

// SubmitRequest describes one answer submission.
type SubmitRequest struct {
	QuestionIdx int
	ExerciseID  string
	UserAnswer  string
	TimeTakenS  float64
	HintUsed    bool

	// DryRun, when true, suppresses the SM-2/mastery cascade on an
	// Evaluator failure: the call returns EvaluatorUnavailable instead of
	// recording a score-0 answer. A successful evaluation is recorded and
	// cascaded as usual.
	DryRun bool
}

// SubmitResult is what submit_answer reports back to the caller.
type SubmitResult struct {
	Correct         bool
	Score           float64
	Feedback        string
	NewReviewState  model.ReviewState
	RemainingCount  int
}

// Summary is the frozen result of a completed session.
type Summary struct {
	TotalQuestions    int
	TotalCorrect      int
	PercentCorrect    float64
	Passed            bool // percent >= PassThreshold
	PerDifficulty      map[model.Difficulty]DifficultyBreakdown
}

// DifficultyBreakdown tracks correctness within one difficulty band.
type DifficultyBreakdown struct {
	Attempted int
	Correct   int
}

// PassThreshold is the percent-correct a session must clear to pass.
const PassThreshold = 0.60

// Manager owns the session state machine.
type Manager struct {
	sessions  store.SessionRepo
	corpus    store.CorpusRepo
	selector  *selector.Selector
	evaluator evaluator.Evaluator
	aggregator *mastery.Aggregator
}

// New builds a Manager wired to the given selector, evaluator, and
// mastery aggregator.
func New(sessions store.SessionRepo, corpus store.CorpusRepo, sel *selector.Selector, eval evaluator.Evaluator, agg *mastery.Aggregator) *Manager {
	return &Manager{sessions: sessions, corpus: corpus, selector: sel, evaluator: eval, aggregator: agg}
}

// Create selects questions via the Quiz Selector, freezes them in
// order, and persists a new open session.
func (m *Manager) Create(ctx context.Context, req CreateRequest, now time.Time) (string, error) {
	sessionID := uuid.New().String()
	exercises, err := m.selector.Select(ctx, selector.Request{
		SessionID: sessionID,
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		QuizType:  req.QuizType,
		Count:     req.Count,
		Filters:   req.Filters,
		Now:       now,
	})
	if err != nil {
		return "", err
	}

	ids := make([]string, len(exercises))
	for i, ex := range exercises {
		ids[i] = ex.ID
	}

	s := model.QuizSession{
		ID:          sessionID,
		CourseID:    req.CourseID,
		StudentID:   req.StudentID,
		QuizType:    req.QuizType,
		Filters:     req.Filters,
		CreatedAt:   now,
		QuestionIDs: ids,
		State:       model.SessionOpen,
	}
	if err := m.sessions.CreateSession(ctx, s); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

// NextQuestion returns the index of the first unanswered question, or
// nil if every question has a recorded answer.
func (m *Manager) NextQuestion(ctx context.Context, sessionID string) (*int, error) {
	s, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &aleerr.SessionNotFound{SessionID: sessionID}
	}

	answers, err := m.sessions.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answered := make(map[int]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionIdx] = true
	}

	for i := range s.QuestionIDs {
		if !answered[i] {
			idx := i
			return &idx, nil
		}
	}
	return nil, nil
}

// SubmitAnswer verifies question ordering, grades the answer through
// the Evaluator, then cascades the outcome through SM-2 and mastery —
// all after the Evaluator call returns, so a canceled grading call
// never touches persisted state.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID string, req SubmitRequest, now time.Time) (SubmitResult, error) {
	lock := m.sessions.Lock(sessionID)
	if !tryLock(lock) {
		return SubmitResult{}, &aleerr.SessionBusy{SessionID: sessionID}
	}
	defer lock.Unlock()

	s, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if s == nil {
		return SubmitResult{}, &aleerr.SessionNotFound{SessionID: sessionID}
	}
	if s.State != model.SessionOpen {
		return SubmitResult{}, &aleerr.SessionComplete{SessionID: sessionID}
	}

	expected, err := m.firstUnanswered(ctx, s)
	if err != nil {
		return SubmitResult{}, err
	}
	if expected == nil {
		return SubmitResult{}, &aleerr.SessionComplete{SessionID: sessionID}
	}
	if req.QuestionIdx != *expected {
		if existing, _ := m.sessions.GetAnswer(ctx, sessionID, req.QuestionIdx); existing != nil {
			return SubmitResult{}, &aleerr.AlreadyAnswered{SessionID: sessionID, QuestionIdx: req.QuestionIdx}
		}
		return SubmitResult{}, &aleerr.OutOfOrderSubmission{SessionID: sessionID, Expected: *expected, Got: req.QuestionIdx}
	}
	if req.ExerciseID != s.QuestionIDs[req.QuestionIdx] {
		return SubmitResult{}, &aleerr.OutOfOrderSubmission{SessionID: sessionID, Expected: *expected, Got: req.QuestionIdx}
	}

	// The Evaluator call happens before any transaction opens, so a
	// cancellation here leaves no trace in persisted state.
	result, evalErr := m.evaluator.Evaluate(ctx, req.ExerciseID, req.UserAnswer, "")
	if evalErr != nil {
		if ctx.Err() != nil {
			return SubmitResult{}, ctx.Err()
		}
		if req.DryRun {
			return SubmitResult{}, &aleerr.EvaluatorUnavailable{Err: evalErr}
		}
		// Per the default Evaluator-failure contract: treat the attempt
		// as a failed answer rather than silently dropping it.
		result = evaluator.Result{Score: 0, Correct: false, Feedback: "evaluator unavailable; recorded as incorrect"}
	}

	exercise, err := m.corpus.GetExercise(ctx, req.ExerciseID)
	if err != nil {
		return SubmitResult{}, err
	}
	if exercise == nil {
		return SubmitResult{}, &aleerr.InternalInvariantViolated{
			Invariant: "frozen question id resolves to an exercise",
			Detail:    fmt.Sprintf("exercise %s not found", req.ExerciseID),
		}
	}

	cascade, err := m.aggregator.RecordAnswer(ctx, s.StudentID, *exercise, result.Score, now)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("cascade answer: %w", err)
	}

	if err := m.sessions.PutAnswer(ctx, model.QuizAnswer{
		SessionID:   sessionID,
		QuestionIdx: req.QuestionIdx,
		ExerciseID:  req.ExerciseID,
		UserAnswer:  req.UserAnswer,
		Score:       result.Score,
		Correct:     result.Correct,
		HintUsed:    req.HintUsed,
		TimeTakenS:  req.TimeTakenS,
		SubmittedAt: now,
	}); err != nil {
		return SubmitResult{}, fmt.Errorf("persist answer: %w", err)
	}

	answers, err := m.sessions.ListAnswers(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	remaining := len(s.QuestionIDs) - len(answers)

	return SubmitResult{
		Correct:        result.Correct,
		Score:          result.Score,
		Feedback:       result.Feedback,
		NewReviewState: cascade.ReviewStates[cascade.PrimaryCoreLoopID],
		RemainingCount: remaining,
	}, nil
}

// Complete transitions the session to complete and computes its
// summary. Idempotent: a session already complete is not an error; its
// summary is recomputed from the recorded answers, which no longer
// change, so every call returns the same summary.
func (m *Manager) Complete(ctx context.Context, sessionID string, now time.Time) (Summary, error) {
	lock := m.sessions.Lock(sessionID)
	if !tryLock(lock) {
		return Summary{}, &aleerr.SessionBusy{SessionID: sessionID}
	}
	defer lock.Unlock()

	s, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	if s == nil {
		return Summary{}, &aleerr.SessionNotFound{SessionID: sessionID}
	}

	answers, err := m.sessions.ListAnswers(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}

	summary, err := m.buildSummary(ctx, *s, answers)
	if err != nil {
		return Summary{}, err
	}

	if s.State == model.SessionOpen {
		completedAt := now
		if _, err := m.sessions.UpdateSession(ctx, sessionID, func(cur model.QuizSession) model.QuizSession {
			cur.State = model.SessionComplete
			cur.CompletedAt = &completedAt
			return cur
		}); err != nil {
			return Summary{}, fmt.Errorf("complete session: %w", err)
		}
	}

	return summary, nil
}

// Abandon transitions an open session to abandoned. A no-op (but not
// an error) on a session that is already complete or abandoned.
func (m *Manager) Abandon(ctx context.Context, sessionID string, now time.Time) error {
	lock := m.sessions.Lock(sessionID)
	if !tryLock(lock) {
		return &aleerr.SessionBusy{SessionID: sessionID}
	}
	defer lock.Unlock()

	s, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		return &aleerr.SessionNotFound{SessionID: sessionID}
	}
	if s.State != model.SessionOpen {
		return nil
	}

	completedAt := now
	_, err = m.sessions.UpdateSession(ctx, sessionID, func(cur model.QuizSession) model.QuizSession {
		cur.State = model.SessionAbandoned
		cur.CompletedAt = &completedAt
		return cur
	})
	return err
}

// Status returns the current persisted session record.
func (m *Manager) Status(ctx context.Context, sessionID string) (*model.QuizSession, error) {
	s, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &aleerr.SessionNotFound{SessionID: sessionID}
	}
	return s, nil
}

func (m *Manager) firstUnanswered(ctx context.Context, s *model.QuizSession) (*int, error) {
	answers, err := m.sessions.ListAnswers(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	answered := make(map[int]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionIdx] = true
	}
	for i := range s.QuestionIDs {
		if !answered[i] {
			idx := i
			return &idx, nil
		}
	}
	return nil, nil
}

func (m *Manager) buildSummary(ctx context.Context, s model.QuizSession, answers []model.QuizAnswer) (Summary, error) {
	summary := Summary{
		PerDifficulty: make(map[model.Difficulty]DifficultyBreakdown),
	}
	for _, a := range answers {
		summary.TotalQuestions++
		if a.Correct {
			summary.TotalCorrect++
		}

		ex, err := m.corpus.GetExercise(ctx, a.ExerciseID)
		if err != nil {
			return Summary{}, err
		}
		diff := model.DifficultyMedium
		if ex != nil {
			diff = ex.Difficulty
		}
		b := summary.PerDifficulty[diff]
		b.Attempted++
		if a.Correct {
			b.Correct++
		}
		summary.PerDifficulty[diff] = b
	}

	if summary.TotalQuestions > 0 {
		summary.PercentCorrect = float64(summary.TotalCorrect) / float64(summary.TotalQuestions)
	}
	summary.Passed = summary.PercentCorrect >= PassThreshold
	return summary, nil
}

// tryLock attempts to acquire the session lock without blocking, so a
// concurrent operation on the same session fails fast as SessionBusy
// instead of queuing behind it.
func tryLock(l store.Locker) bool {
	return l.TryLock()
}
