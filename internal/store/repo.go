package store

import (
	"context"
	"time"

	"github.com/studymesh/ale/internal/model"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int       // max results (0 = default of 50)
	From  time.Time // timestamp >= From
	To    time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider         string
	Model            string
	Purpose          string
	InputTokens      int
	OutputTokens     int
	LatencyMs        int64
	Success          bool
	ErrorMessage     string
	RequestBody      string
	ResponseBody     string
	EstimatedCostUSD float64
}

// LLMRequestEventRecord is a hydrated LLM event for display (includes ID
// and timestamp).
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// EventRepo records and queries the append-only LLM request event log.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)
}

// CorpusRepo manages the static corpus: topics, core loops, and
// exercises, plus their membership relations.
type CorpusRepo interface {
	PutTopic(ctx context.Context, t model.Topic) error
	PutCoreLoop(ctx context.Context, c model.CoreLoop) error
	PutExercise(ctx context.Context, e model.Exercise) error

	GetTopic(ctx context.Context, id string) (*model.Topic, error)
	GetCoreLoop(ctx context.Context, id string) (*model.CoreLoop, error)
	GetExercise(ctx context.Context, id string) (*model.Exercise, error)

	ListCoreLoops(ctx context.Context, courseID string) ([]model.CoreLoop, error)
	ListExercises(ctx context.Context, courseID string, f model.Filters) ([]model.Exercise, error)
	ExerciseExists(ctx context.Context, id string) (bool, error)
	CoreLoopExists(ctx context.Context, id string) (bool, error)
}

// ReviewRepo manages per-(student, core_loop) SM-2 review state.
type ReviewRepo interface {
	// Get returns the review state for the pair, or a freshly-initialized
	// zero state if none exists yet.
	Get(ctx context.Context, studentID, coreLoopID string) (model.ReviewState, error)

	// Update runs fn against the current state under the pair's lock and
	// persists whatever fn returns. fn sees a consistent read and its
	// write is atomic with respect to other callers on the same pair.
	Update(ctx context.Context, studentID, coreLoopID string, fn func(model.ReviewState) model.ReviewState) (model.ReviewState, error)

	// ListDue returns every review state for the student that is due as
	// of now, across the given core loop ids.
	ListDue(ctx context.Context, studentID string, coreLoopIDs []string, now time.Time) ([]model.ReviewState, error)

	// ListAll returns one review state per given core loop id (due or
	// not), in the order of coreLoopIDs; an id the student has no stored
	// state for yields a freshly-initialized zero state.
	ListAll(ctx context.Context, studentID string, coreLoopIDs []string) ([]model.ReviewState, error)
}

// MasteryRepo manages topic- and course-level mastery aggregates.
type MasteryRepo interface {
	GetTopicMastery(ctx context.Context, studentID, topicID string) (model.TopicMastery, error)
	PutTopicMastery(ctx context.Context, m model.TopicMastery) error

	GetCourseMastery(ctx context.Context, studentID, courseID string) (model.CourseMastery, error)
	PutCourseMastery(ctx context.Context, m model.CourseMastery) error
}

// SessionRepo manages quiz sessions and their answers.
type SessionRepo interface {
	CreateSession(ctx context.Context, s model.QuizSession) error
	GetSession(ctx context.Context, id string) (*model.QuizSession, error)

	// UpdateSession runs fn against the current session and persists
	// whatever fn returns. It does not take the session's lock; the
	// caller holds it (see Lock).
	UpdateSession(ctx context.Context, id string, fn func(model.QuizSession) model.QuizSession) (model.QuizSession, error)

	PutAnswer(ctx context.Context, a model.QuizAnswer) error
	GetAnswer(ctx context.Context, sessionID string, idx int) (*model.QuizAnswer, error)
	ListAnswers(ctx context.Context, sessionID string) ([]model.QuizAnswer, error)

	// Lock returns the mutex guarding this session id for callers (such
	// as the session manager) that need to hold it across multiple repo
	// calls within one logical operation.
	Lock(sessionID string) Locker
}

// PrereqRepo manages the prerequisite edge relation over core loops.
type PrereqRepo interface {
	AddEdge(ctx context.Context, e model.PrerequisiteEdge) error
	ListEdges(ctx context.Context) ([]model.PrerequisiteEdge, error)
	PrereqsOf(ctx context.Context, coreLoopID string) ([]string, error)
	DependentsOf(ctx context.Context, coreLoopID string) ([]string, error)
}

// Locker is the mutex interface exposed by SessionRepo.Lock. TryLock
// lets callers fail fast with SessionBusy instead of blocking on a
// session another operation already holds.
type Locker interface {
	Lock()
	TryLock() bool
	Unlock()
}
