// Package advisor implements the Adaptive Advisor: read-only queries
// over aggregated mastery and scheduling state — depth selection,
// prerequisite gating, the top-K learning path, and gap detection.
package advisor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/prereq"
	"github.com/studymesh/ale/internal/store"
)

// Depth is the recommended content depth for a core loop.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthMedium   Depth = "medium"
	DepthAdvanced Depth = "advanced"
)

// Severity bands a mastery gap.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// recentFailureThreshold gates prerequisite display for medium-mastery
// core loops (§4.5).
const recentFailureThreshold = 0.40

// Advisor answers questions about what a student should study next.
type Advisor struct {
	corpus  store.CorpusRepo
	reviews store.ReviewRepo
	graph   *prereq.Graph
}

// New builds an Advisor over the given repositories and prerequisite graph.
func New(corpus store.CorpusRepo, reviews store.ReviewRepo, graph *prereq.Graph) *Advisor {
	return &Advisor{corpus: corpus, reviews: reviews, graph: graph}
}

// Depth returns the recommended content depth for a core loop, banded
// by the student's current mastery_score.
func (a *Advisor) Depth(ctx context.Context, studentID, coreLoopID string) (Depth, error) {
	rs, err := a.reviews.Get(ctx, studentID, coreLoopID)
	if err != nil {
		return "", err
	}
	return depthFor(rs.MasteryScore), nil
}

func depthFor(m float64) Depth {
	switch {
	case m < 0.30:
		return DepthBasic
	case m < 0.70:
		return DepthMedium
	default:
		return DepthAdvanced
	}
}

// ShouldShowPrerequisites reports whether prerequisite material should
// surface alongside a core loop: always below 0.30 mastery, or in the
// 0.30-0.70 band when the recent failure rate is elevated.
func (a *Advisor) ShouldShowPrerequisites(ctx context.Context, studentID, coreLoopID string) (bool, error) {
	rs, err := a.reviews.Get(ctx, studentID, coreLoopID)
	if err != nil {
		return false, err
	}
	if rs.MasteryScore < 0.30 {
		return true, nil
	}
	if rs.MasteryScore < 0.70 && rs.RecentFailureRate() > recentFailureThreshold {
		return true, nil
	}
	return false, nil
}

// Learn checks prerequisite gating for a learn action on coreLoopID.
// If the student has weak (<0.30 mastery) prerequisites and force is
// false, it returns a PrerequisiteBlocked advisory rather than an
// outright error the caller can't recover from.
func (a *Advisor) Learn(ctx context.Context, studentID, coreLoopID string, force bool) error {
	weak, err := a.weakPrereqs(ctx, studentID, coreLoopID)
	if err != nil {
		return err
	}
	if len(weak) > 0 && !force {
		return &aleerr.PrerequisiteBlocked{CoreLoopID: coreLoopID, WeakPrereqs: weak}
	}
	return nil
}

func (a *Advisor) weakPrereqs(ctx context.Context, studentID, coreLoopID string) ([]string, error) {
	prereqIDs := a.graph.DirectPrereqsOf(coreLoopID)
	var weak []string
	for _, p := range prereqIDs {
		rs, err := a.reviews.Get(ctx, studentID, p)
		if err != nil {
			return nil, err
		}
		if rs.MasteryScore < 0.30 {
			weak = append(weak, p)
		}
	}
	return weak, nil
}

// PathItem is one entry in a generated learning path.
type PathItem struct {
	CoreLoopID string
	Urgency    string // "high", "medium", "low"
	Reason     string
}

// LearningPath builds the top-K recommended core loops: overdue
// reviews, then weak areas, then due-today items, then new content —
// concatenated in that order, deduplicated by core loop, truncated to k.
func (a *Advisor) LearningPath(ctx context.Context, studentID, courseID string, k int, now time.Time) ([]PathItem, error) {
	loops, err := a.corpus.ListCoreLoops(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(loops))
	for i, l := range loops {
		ids[i] = l.ID
	}

	states, err := a.reviews.ListAll(ctx, studentID, ids)
	if err != nil {
		return nil, err
	}
	byLoop := make(map[string]model.ReviewState, len(states))
	for _, s := range states {
		byLoop[s.CoreLoopID] = s
	}

	exercises, err := a.corpus.ListExercises(ctx, courseID, model.Filters{})
	if err != nil {
		return nil, err
	}
	exerciseCount := make(map[string]int)
	easiestDifficulty := make(map[string]model.Difficulty)
	for _, ex := range exercises {
		loop := ex.PrimaryCoreLoop()
		exerciseCount[loop]++
		if cur, ok := easiestDifficulty[loop]; !ok || difficultyRank(ex.Difficulty) < difficultyRank(cur) {
			easiestDifficulty[loop] = ex.Difficulty
		}
	}

	var overdue, weak, dueToday, newContent []string

	for _, id := range ids {
		rs := byLoop[id]
		switch {
		case rs.TotalAttempts == 0:
			newContent = append(newContent, id)
		case rs.OverdueDays(now) > 0:
			overdue = append(overdue, id)
		case rs.MasteryScore < 0.5:
			weak = append(weak, id)
		case rs.Due(now):
			dueToday = append(dueToday, id)
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		return byLoop[overdue[i]].OverdueDays(now) > byLoop[overdue[j]].OverdueDays(now)
	})
	sort.SliceStable(weak, func(i, j int) bool {
		return byLoop[weak[i]].MasteryScore < byLoop[weak[j]].MasteryScore
	})
	sort.SliceStable(dueToday, func(i, j int) bool {
		return byLoop[dueToday[i]].MasteryScore < byLoop[dueToday[j]].MasteryScore
	})
	sort.SliceStable(newContent, func(i, j int) bool {
		di, dj := difficultyRank(easiestDifficulty[newContent[i]]), difficultyRank(easiestDifficulty[newContent[j]])
		if di != dj {
			return di < dj
		}
		return exerciseCount[newContent[i]] > exerciseCount[newContent[j]]
	})

	type tagged struct {
		id      string
		urgency string
		reason  string
	}
	var ordered []tagged
	for _, id := range overdue {
		ordered = append(ordered, tagged{id, "high", "overdue review"})
	}
	for _, id := range weak {
		ordered = append(ordered, tagged{id, "medium", "weak area"})
	}
	for _, id := range dueToday {
		ordered = append(ordered, tagged{id, "medium", "due today"})
	}
	for _, id := range newContent {
		ordered = append(ordered, tagged{id, "low", "new content"})
	}

	seen := make(map[string]bool)
	var out []PathItem
	for _, t := range ordered {
		if seen[t.id] {
			continue
		}
		seen[t.id] = true
		out = append(out, PathItem{CoreLoopID: t.id, Urgency: t.urgency, Reason: t.reason})
		if k > 0 && len(out) >= k {
			break
		}
	}
	return out, nil
}

// difficultyRank orders Difficulty easy (0) to hard (2); an unset
// difficulty (no exercises yet materialized for the loop) sorts last.
func difficultyRank(d model.Difficulty) int {
	switch d {
	case model.DifficultyEasy:
		return 0
	case model.DifficultyMedium:
		return 1
	case model.DifficultyHard:
		return 2
	default:
		return 3
	}
}

// Gap is a core loop the student has not yet adequately mastered.
type Gap struct {
	CoreLoopID string
	Mastery    float64
	Severity   Severity
}

// Gaps returns every core loop in the course with mastery_score < 0.5,
// banded by severity.
func (a *Advisor) Gaps(ctx context.Context, studentID, courseID string) ([]Gap, error) {
	loops, err := a.corpus.ListCoreLoops(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(loops))
	for i, l := range loops {
		ids[i] = l.ID
	}

	states, err := a.reviews.ListAll(ctx, studentID, ids)
	if err != nil {
		return nil, fmt.Errorf("list review states for course %s: %w", courseID, err)
	}

	var gaps []Gap
	for _, rs := range states {
		if rs.MasteryScore >= 0.5 {
			continue
		}
		gaps = append(gaps, Gap{
			CoreLoopID: rs.CoreLoopID,
			Mastery:    rs.MasteryScore,
			Severity:   severityFor(rs.MasteryScore),
		})
	}
	return gaps, nil
}

func severityFor(m float64) Severity {
	switch {
	case m < 0.20:
		return SeverityHigh
	case m < 0.35:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
