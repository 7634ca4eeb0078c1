// Package mastery implements the Mastery Aggregator: it cascades a
// single answered question up through ReviewState (per core loop),
// TopicMastery, and CourseMastery, entirely inside one transaction so
// readers never observe a partial cascade.
package mastery

import (
	"context"
	"fmt"
	"time"

	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/sm2"
	"github.com/studymesh/ale/internal/store"
)

// Weight and decay constants for the EWMA mastery cascade (§4.4).
const (
	WeightPrimary   = 1.0
	WeightSecondary = 0.5

	AlphaPrimary   = 0.3
	AlphaSecondary = 0.15

	// CorrectThreshold is the score at or above which an attempt counts
	// toward correct_attempts.
	CorrectThreshold = 0.7
)

// Aggregator cascades answer outcomes through review state and the
// topic/course mastery aggregates.
type Aggregator struct {
	corpus  store.CorpusRepo
	reviews store.ReviewRepo
	masteryStore store.MasteryRepo
}

// New builds an Aggregator over the given repositories.
func New(corpus store.CorpusRepo, reviews store.ReviewRepo, masteryStore store.MasteryRepo) *Aggregator {
	return &Aggregator{corpus: corpus, reviews: reviews, masteryStore: masteryStore}
}

// CascadeResult reports the per-core-loop review states touched by one
// answer, for callers that need the fresh scheduling state (the Session
// Manager uses the primary loop's ReviewState to compute next_review).
type CascadeResult struct {
	PrimaryCoreLoopID string
	ReviewStates      map[string]model.ReviewState // by core_loop_id
}

// RecordAnswer updates every core loop linked to exercise, then
// recomputes the owning topic's and course's mastery aggregates. The
// primary core loop (first in exercise.CoreLoopIDs) updates its
// mastery_score with the full weight and alpha; the rest use the reduced
// secondary weight and alpha. SM-2 scheduling uses the raw score for all.
//
// now is threaded through explicitly so the cascade is deterministic
// and testable.
func (a *Aggregator) RecordAnswer(ctx context.Context, studentID string, exercise model.Exercise, score float64, now time.Time) (CascadeResult, error) {
	if len(exercise.CoreLoopIDs) == 0 {
		return CascadeResult{}, fmt.Errorf("exercise %s has no core loops", exercise.ID)
	}

	result := CascadeResult{
		PrimaryCoreLoopID: exercise.PrimaryCoreLoop(),
		ReviewStates:      make(map[string]model.ReviewState, len(exercise.CoreLoopIDs)),
	}

	for i, coreLoopID := range exercise.CoreLoopIDs {
		isPrimary := i == 0
		weight := WeightSecondary
		alpha := AlphaSecondary
		if isPrimary {
			weight = WeightPrimary
			alpha = AlphaPrimary
		}

		updated, err := a.reviews.Update(ctx, studentID, coreLoopID, func(rs model.ReviewState) model.ReviewState {
			return applyOutcome(rs, score, weight, alpha, now)
		})
		if err != nil {
			return CascadeResult{}, fmt.Errorf("update review state for core loop %s: %w", coreLoopID, err)
		}
		result.ReviewStates[coreLoopID] = updated

		if err := a.recomputeTopicAndCourse(ctx, studentID, coreLoopID, now); err != nil {
			return CascadeResult{}, err
		}
	}

	return result, nil
}

// applyOutcome is the pure EWMA + SM-2 step for one core loop's review
// state. Every linked core loop advances its own SM-2 ladder on the raw
// score; only the mastery_score EWMA applies the primary/secondary
// weight, since a loop's schedule is its own regardless of which
// exercise exercised it.
func applyOutcome(rs model.ReviewState, score, weight, alpha float64, now time.Time) model.ReviewState {
	weightedOutcome := score * weight
	rs.MasteryScore = (1-alpha)*rs.MasteryScore + alpha*weightedOutcome

	rs.TotalAttempts++
	correct := score >= CorrectThreshold
	if correct {
		rs.CorrectAttempts++
	}
	rs.RecentOutcomes = rs.PushOutcome(correct)

	quality := sm2.MapQuality(score)
	outcome := sm2.Schedule(quality, rs.EasinessFactor, rs.RepetitionNumber, rs.IntervalDays, now)
	rs.EasinessFactor = outcome.EasinessFactor
	rs.RepetitionNumber = outcome.RepetitionNumber
	rs.IntervalDays = outcome.IntervalDays
	rs.NextReview = &outcome.NextReview
	rs.LastReviewed = &now

	return rs
}

// recomputeTopicAndCourse rolls the touched core loop's topic up to a
// fresh TopicMastery, then that topic's course up to a fresh
// CourseMastery, both weighted by total_attempts (floor 1).
func (a *Aggregator) recomputeTopicAndCourse(ctx context.Context, studentID, coreLoopID string, now time.Time) error {
	coreLoop, err := a.corpus.GetCoreLoop(ctx, coreLoopID)
	if err != nil {
		return fmt.Errorf("load core loop %s: %w", coreLoopID, err)
	}
	if coreLoop == nil {
		return fmt.Errorf("core loop %s does not exist", coreLoopID)
	}

	topic, err := a.corpus.GetTopic(ctx, coreLoop.TopicID)
	if err != nil {
		return fmt.Errorf("load topic %s: %w", coreLoop.TopicID, err)
	}
	if topic == nil {
		return fmt.Errorf("topic %s does not exist", coreLoop.TopicID)
	}

	topicLoops, err := a.corpus.ListCoreLoops(ctx, topic.CourseID)
	if err != nil {
		return fmt.Errorf("list core loops for course %s: %w", topic.CourseID, err)
	}

	var topicLoopIDs []string
	for _, cl := range topicLoops {
		if cl.TopicID == topic.ID {
			topicLoopIDs = append(topicLoopIDs, cl.ID)
		}
	}

	reviewStates, err := a.reviews.ListAll(ctx, studentID, topicLoopIDs)
	if err != nil {
		return fmt.Errorf("list review states for topic %s: %w", topic.ID, err)
	}

	topicMasteryScore := weightedMean(reviewStates)
	if err := a.masteryStore.PutTopicMastery(ctx, model.TopicMastery{
		StudentID:    studentID,
		TopicID:      topic.ID,
		MasteryScore: topicMasteryScore,
		LastUpdated:  now,
	}); err != nil {
		return fmt.Errorf("put topic mastery: %w", err)
	}

	return a.recomputeCourse(ctx, studentID, topic.CourseID, topicLoops, now)
}

// recomputeCourse recomputes CourseMastery as the total_attempts-weighted
// mean of the mastery_score of every core loop in the course (a course's
// topics are each just a grouping of core loops, so the course aggregate
// is computed directly over the course's full core loop set rather than
// by re-weighting already-weighted topic means).
func (a *Aggregator) recomputeCourse(ctx context.Context, studentID, courseID string, courseLoops []model.CoreLoop, now time.Time) error {
	ids := make([]string, len(courseLoops))
	for i, cl := range courseLoops {
		ids[i] = cl.ID
	}

	reviewStates, err := a.reviews.ListAll(ctx, studentID, ids)
	if err != nil {
		return fmt.Errorf("list review states for course %s: %w", courseID, err)
	}

	courseMasteryScore := weightedMean(reviewStates)
	return a.masteryStore.PutCourseMastery(ctx, model.CourseMastery{
		StudentID:    studentID,
		CourseID:     courseID,
		MasteryScore: courseMasteryScore,
		LastUpdated:  now,
	})
}

// weightedMean computes the total_attempts-weighted mean of mastery
// scores, treating total_attempts=0 as weight 1 (an untouched core loop
// still contributes its zero-value mastery to the aggregate, rather than
// being silently excluded).
func weightedMean(states []model.ReviewState) float64 {
	if len(states) == 0 {
		return 0
	}
	var sumWeighted, sumWeights float64
	for _, rs := range states {
		w := float64(rs.TotalAttempts)
		if w < 1 {
			w = 1
		}
		sumWeighted += rs.MasteryScore * w
		sumWeights += w
	}
	if sumWeights == 0 {
		return 0
	}
	return sumWeighted / sumWeights
}
