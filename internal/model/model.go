// Package model holds the shared entity types for the adaptive learning
// engine: the corpus (exercises, core loops, topics), per-student mastery
// state, quiz sessions, and the prerequisite relation between core loops.
package model

import "time"

// Difficulty is the declared difficulty band of an exercise.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ExerciseType categorizes the shape of an exercise.
type ExerciseType string

const (
	ExerciseProcedural ExerciseType = "procedural"
	ExerciseTheory      ExerciseType = "theory"
	ExerciseProof      ExerciseType = "proof"
	ExerciseHybrid      ExerciseType = "hybrid"
)

// CoreLoopType categorizes the kind of procedure a core loop represents.
type CoreLoopType string

const (
	CoreLoopDesign         CoreLoopType = "design"
	CoreLoopTransformation CoreLoopType = "transformation"
	CoreLoopVerification   CoreLoopType = "verification"
	CoreLoopMinimization   CoreLoopType = "minimization"
	CoreLoopAnalysis       CoreLoopType = "analysis"
	CoreLoopOther          CoreLoopType = "other"
)

// Exercise is a problem item, immutable once ingested (analyzed=true).
// CoreLoopIDs is ordered; the first entry is the primary core loop.
type Exercise struct {
	ID          string
	CourseID    string
	TopicID     string
	CoreLoopIDs []string
	Difficulty  Difficulty
	Type        ExerciseType
	Tags        []string
	Analyzed    bool
}

// PrimaryCoreLoop returns the materialized primary core loop id, or ""
// if the exercise has no core loops (which ingest validation rejects).
func (e Exercise) PrimaryCoreLoop() string {
	if len(e.CoreLoopIDs) == 0 {
		return ""
	}
	return e.CoreLoopIDs[0]
}

// CoreLoop is a named procedural pattern — the unit of mastery tracking.
type CoreLoop struct {
	ID       string
	Name     string
	Type     CoreLoopType
	TopicID  string
	Language string
}

// Topic belongs to a course.
type Topic struct {
	ID       string
	CourseID string
	Name     string
	Language string
}

// ReviewState is the per-(student, core_loop) SM-2 record — the hot entity.
type ReviewState struct {
	StudentID        string
	CoreLoopID       string
	EasinessFactor   float64
	RepetitionNumber int
	IntervalDays     int
	NextReview       *time.Time
	LastReviewed     *time.Time
	TotalAttempts    int
	CorrectAttempts  int
	MasteryScore     float64

	// RecentOutcomes is a ring of the last few attempts' correctness
	// (newest last, capped at RecentOutcomesCap), feeding the Adaptive
	// Advisor's recent-failure-rate prerequisite trigger.
	RecentOutcomes []bool
}

// RecentOutcomesCap bounds ReviewState.RecentOutcomes.
const RecentOutcomesCap = 5

// PushOutcome appends a correctness outcome to RecentOutcomes, dropping
// the oldest entry once the cap is exceeded.
func (r ReviewState) PushOutcome(correct bool) []bool {
	out := append(append([]bool(nil), r.RecentOutcomes...), correct)
	if len(out) > RecentOutcomesCap {
		out = out[len(out)-RecentOutcomesCap:]
	}
	return out
}

// RecentFailureRate returns the fraction of RecentOutcomes that were
// incorrect, or 0 if there are no recorded outcomes yet.
func (r ReviewState) RecentFailureRate() float64 {
	if len(r.RecentOutcomes) == 0 {
		return 0
	}
	failures := 0
	for _, c := range r.RecentOutcomes {
		if !c {
			failures++
		}
	}
	return float64(failures) / float64(len(r.RecentOutcomes))
}

// NewReviewState returns a freshly-initialized ReviewState with SM-2 defaults.
func NewReviewState(studentID, coreLoopID string) ReviewState {
	return ReviewState{
		StudentID:      studentID,
		CoreLoopID:     coreLoopID,
		EasinessFactor: 2.5,
	}
}

// Due reports whether this review is due as of `now`: NextReview is nil
// or has passed.
func (r ReviewState) Due(now time.Time) bool {
	return r.NextReview == nil || !r.NextReview.After(now)
}

// OverdueDays returns how many days past due this review is (0 if not
// yet due or never attempted with no schedule).
func (r ReviewState) OverdueDays(now time.Time) float64 {
	if r.NextReview == nil {
		return 0
	}
	d := now.Sub(*r.NextReview).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// TopicMastery is the attempt-weighted aggregate over a topic's core loops.
type TopicMastery struct {
	StudentID    string
	TopicID      string
	MasteryScore float64
	LastUpdated  time.Time
}

// CourseMastery is the attempt-weighted aggregate over all of a course's
// core loops.
type CourseMastery struct {
	StudentID    string
	CourseID     string
	MasteryScore float64
	LastUpdated  time.Time
}

// QuizType selects the question-selection strategy for a session.
type QuizType string

const (
	QuizRandom   QuizType = "random"
	QuizTopic    QuizType = "topic"
	QuizCoreLoop QuizType = "core_loop"
	QuizReview   QuizType = "review"
	QuizAdaptive QuizType = "adaptive"
)

// SessionState is the lifecycle state of a QuizSession.
type SessionState string

const (
	SessionOpen      SessionState = "open"
	SessionComplete  SessionState = "complete"
	SessionAbandoned SessionState = "abandoned"
)

// Filters narrows exercise selection to a topic, core loop, difficulty,
// and/or exercise type. Zero values mean "no constraint" on that axis.
type Filters struct {
	TopicID    string
	CoreLoopID string
	Difficulty Difficulty
	Type       ExerciseType
}

// QuizSession is an ordered, frozen list of exercises presented to a
// student, with per-question answers appended as they're submitted.
type QuizSession struct {
	ID           string
	CourseID     string
	StudentID    string
	QuizType     QuizType
	Filters      Filters
	CreatedAt    time.Time
	CompletedAt  *time.Time
	QuestionIDs  []string // frozen at creation
	State        SessionState
}

// QuizAnswer is one answered question within a session.
type QuizAnswer struct {
	SessionID    string
	QuestionIdx  int
	ExerciseID   string
	UserAnswer   string
	Score        float64
	Correct      bool
	HintUsed     bool
	TimeTakenS   float64
	SubmittedAt  time.Time
}

// PrerequisiteEdge is a directed edge prereq -> dependent over core loops.
type PrerequisiteEdge struct {
	PrereqCoreLoopID    string
	DependentCoreLoopID string
}
