// Package selector implements the Quiz Selector: the five-stage
// filter/prioritize/bucket/review/sample pipeline that picks which
// exercises make up a quiz session.
package selector

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

// Request describes one selection call.
type Request struct {
	StudentID     string
	CourseID      string
	QuizType      model.QuizType
	Count         int
	Filters       model.Filters
	PrioritizeDue bool
	SessionID     string // seeds the tie-break noise; same id -> same order
	Now           time.Time
}

// Selector picks exercises for a quiz session.
type Selector struct {
	corpus  store.CorpusRepo
	reviews store.ReviewRepo
}

// New builds a Selector over the given repositories.
func New(corpus store.CorpusRepo, reviews store.ReviewRepo) *Selector {
	return &Selector{corpus: corpus, reviews: reviews}
}

// candidate pairs an exercise with the scoring state of its primary
// core loop, computed once per Select call.
type candidate struct {
	exercise model.Exercise
	priority float64
	mastery  float64
}

// Select runs the full pipeline and returns up to req.Count exercises.
func (s *Selector) Select(ctx context.Context, req Request) ([]model.Exercise, error) {
	// Stage 1 — filter.
	exercises, err := s.corpus.ListExercises(ctx, req.CourseID, req.Filters)
	if err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, &aleerr.NoCandidates{CourseID: req.CourseID, Filters: filtersString(req.Filters)}
	}

	// Stage 4 — review mode restricts the candidate set up front.
	if req.QuizType == model.QuizReview {
		exercises, err = s.filterDue(ctx, req.StudentID, exercises, req.Now)
		if err != nil {
			return nil, err
		}
		if len(exercises) == 0 {
			return nil, &aleerr.NoCandidates{CourseID: req.CourseID, Filters: "review: nothing due"}
		}
	}

	cands, err := s.buildCandidates(ctx, req.StudentID, exercises, req.Now)
	if err != nil {
		return nil, err
	}

	needsPriority := req.PrioritizeDue || req.QuizType == model.QuizReview || req.QuizType == model.QuizAdaptive
	if needsPriority {
		rng := newSessionRand(req.SessionID)
		for i := range cands {
			cands[i].priority += noise(rng)
		}
	}

	// Stage 3 — adaptive bucketing.
	if req.QuizType == model.QuizAdaptive {
		cands = bucketAdaptive(cands, req.Count)
	}

	// Stage 5 — select top N with tie-breaks.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].priority != cands[j].priority {
			return cands[i].priority > cands[j].priority
		}
		if cands[i].mastery != cands[j].mastery {
			return cands[i].mastery < cands[j].mastery
		}
		return cands[i].exercise.ID < cands[j].exercise.ID
	})

	n := req.Count
	if n > len(cands) || n <= 0 {
		n = len(cands)
	}
	out := make([]model.Exercise, n)
	for i := 0; i < n; i++ {
		out[i] = cands[i].exercise
	}
	return out, nil
}

func (s *Selector) buildCandidates(ctx context.Context, studentID string, exercises []model.Exercise, now time.Time) ([]candidate, error) {
	cands := make([]candidate, 0, len(exercises))
	for _, ex := range exercises {
		rs, err := s.reviews.Get(ctx, studentID, ex.PrimaryCoreLoop())
		if err != nil {
			return nil, err
		}
		cands = append(cands, candidate{
			exercise: ex,
			priority: priorityOf(rs, now),
			mastery:  rs.MasteryScore,
		})
	}
	return cands, nil
}

func (s *Selector) filterDue(ctx context.Context, studentID string, exercises []model.Exercise, now time.Time) ([]model.Exercise, error) {
	var out []model.Exercise
	for _, ex := range exercises {
		rs, err := s.reviews.Get(ctx, studentID, ex.PrimaryCoreLoop())
		if err != nil {
			return nil, err
		}
		if rs.Due(now) {
			out = append(out, ex)
		}
	}
	return out, nil
}

// priorityOf implements stage 2's scoring:
//
//	never reviewed      -> 1000
//	overdue by d days    -> 100 + d
//	not yet due, d days  -> 50 - d
func priorityOf(rs model.ReviewState, now time.Time) float64 {
	if rs.NextReview == nil {
		return 1000
	}
	d := now.Sub(*rs.NextReview).Hours() / 24
	if d >= 0 {
		return 100 + d
	}
	return 50 - (-d)
}

// bucketAdaptive buckets candidates by primary core loop mastery into
// weak (<0.5), learning ([0.5,0.7)), strong (>=0.7), targets a 40/40/20
// mix, and redistributes shortfalls to the other buckets while
// preserving the total requested count.
func bucketAdaptive(cands []candidate, count int) []candidate {
	if count <= 0 {
		count = len(cands)
	}

	var weak, learning, strong []candidate
	for _, c := range cands {
		switch {
		case c.mastery < 0.5:
			weak = append(weak, c)
		case c.mastery < 0.7:
			learning = append(learning, c)
		default:
			strong = append(strong, c)
		}
	}

	targetWeak := int(float64(count) * 0.4)
	targetLearning := int(float64(count) * 0.4)
	targetStrong := count - targetWeak - targetLearning

	takeWeak := minInt(targetWeak, len(weak))
	takeLearning := minInt(targetLearning, len(learning))
	takeStrong := minInt(targetStrong, len(strong))

	shortfall := (targetWeak - takeWeak) + (targetLearning - takeLearning) + (targetStrong - takeStrong)

	out := append([]candidate{}, weak[:takeWeak]...)
	out = append(out, learning[:takeLearning]...)
	out = append(out, strong[:takeStrong]...)

	if shortfall > 0 {
		leftovers := append([]candidate{}, weak[takeWeak:]...)
		leftovers = append(leftovers, learning[takeLearning:]...)
		leftovers = append(leftovers, strong[takeStrong:]...)
		sort.SliceStable(leftovers, func(i, j int) bool { return leftovers[i].priority > leftovers[j].priority })
		if shortfall > len(leftovers) {
			shortfall = len(leftovers)
		}
		out = append(out, leftovers[:shortfall]...)
	}

	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// newSessionRand seeds a deterministic source from the session id, so
// the same session always produces the same tie-break noise.
func newSessionRand(sessionID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed))
}

// noise returns uniform noise in [-10, 10].
func noise(rng *rand.Rand) float64 {
	return rng.Float64()*20 - 10
}

func filtersString(f model.Filters) string {
	return "topic=" + f.TopicID + " core_loop=" + f.CoreLoopID +
		" difficulty=" + string(f.Difficulty) + " type=" + string(f.Type)
}
