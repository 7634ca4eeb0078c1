// Package corpus validates and stores already-analyzed exercises. It
// never calls back into whatever produced them — PDF extraction, LLM
// analysis, and dedup are all external collaborators.
package corpus

import (
	"context"
	"fmt"
	"strings"

	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

// ValidationError describes one structural problem found in an
// ingest batch. ExerciseID identifies which exercise failed and Reason
// which aspect of it.
type ValidationError struct {
	ExerciseID string
	Reason     string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("exercise %q: %s", e.ExerciseID, e.Reason)
}

// ValidationErrors collects every problem found in one ingest call.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("ingest validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// Ingester validates and persists exercises from the analyzer.
type Ingester struct {
	corpus store.CorpusRepo
}

// New builds an Ingester over the given corpus repository.
func New(corpus store.CorpusRepo) *Ingester {
	return &Ingester{corpus: corpus}
}

// Ingest validates every exercise in the batch against the referential
// invariants (topic exists, every core loop exists, primary core loop
// materialized, analyzed=true) before persisting any of them. A batch
// with any invalid exercise is rejected wholesale as ValidationErrors;
// nothing is written.
func (in *Ingester) Ingest(ctx context.Context, exercises []model.Exercise) error {
	if errs := in.validate(ctx, exercises); len(errs) > 0 {
		return errs
	}

	for _, ex := range exercises {
		if err := in.corpus.PutExercise(ctx, ex); err != nil {
			return fmt.Errorf("persist exercise %s: %w", ex.ID, err)
		}
	}
	return nil
}

func (in *Ingester) validate(ctx context.Context, exercises []model.Exercise) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool, len(exercises))
	for _, ex := range exercises {
		if seen[ex.ID] {
			errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: "duplicate exercise id in batch"})
		}
		seen[ex.ID] = true

		if !ex.Analyzed {
			errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: "analyzed must be true for ingest"})
		}

		if ex.TopicID == "" {
			errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: "missing topic_id"})
		} else {
			topic, err := in.corpus.GetTopic(ctx, ex.TopicID)
			if err != nil {
				errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: fmt.Sprintf("lookup topic %s: %v", ex.TopicID, err)})
			} else if topic == nil {
				errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: fmt.Sprintf("topic %s does not exist", ex.TopicID)})
			}
		}

		if len(ex.CoreLoopIDs) == 0 {
			errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: "no primary core loop materialized: core_loop_ids is empty"})
			continue
		}

		for i, coreLoopID := range ex.CoreLoopIDs {
			exists, err := in.corpus.CoreLoopExists(ctx, coreLoopID)
			if err != nil {
				errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: fmt.Sprintf("lookup core loop %s: %v", coreLoopID, err)})
				continue
			}
			if !exists {
				role := "core loop"
				if i == 0 {
					role = "primary core loop"
				}
				errs = append(errs, ValidationError{ExerciseID: ex.ID, Reason: fmt.Sprintf("%s %s does not exist", role, coreLoopID)})
			}
		}
	}

	return errs
}
