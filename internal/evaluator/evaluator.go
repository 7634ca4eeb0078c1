// Package evaluator adapts the multi-provider LLM client in internal/llm
// to the adaptive learning engine's narrow Evaluator contract: grade a
// free-form answer against an exercise and return a score, feedback, and
// a correctness flag. Apart from the cmd/ wiring that builds the
// provider, internal/evaluator is the only package that imports
// internal/llm.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/llm"
)

// Result is the outcome of grading one answer.
type Result struct {
	Score   float64 // in [0,1]
	Feedback string
	Correct bool
}

// Evaluator grades a student's free-form answer to an exercise.
type Evaluator interface {
	Evaluate(ctx context.Context, exerciseID, userAnswer, language string) (Result, error)
}

var responseSchema = &llm.Schema{
	Name:        "answer-evaluation",
	Description: "Grading result for a student's answer to an exercise.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "How correct the answer is, from 0 (wrong) to 1 (fully correct).",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "A short explanation of what was right or wrong.",
			},
			"correct": map[string]any{
				"type":        "boolean",
				"description": "Whether the answer should count as correct overall.",
			},
		},
		"required":             []string{"score", "feedback", "correct"},
		"additionalProperties": false,
	},
}

type evaluationResponse struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	Correct  bool    `json:"correct"`
}

// ExerciseLookup resolves an exercise id to the prompt text graded
// against. The evaluator package doesn't own corpus storage, so callers
// wire this to internal/store.CorpusRepo at construction time.
type ExerciseLookup func(ctx context.Context, exerciseID string) (prompt string, err error)

// LLMEvaluator is the production Evaluator, backed by an llm.Provider.
type LLMEvaluator struct {
	provider Provider
	lookup   ExerciseLookup
}

// Provider is the subset of llm.Provider the evaluator needs.
type Provider interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// NewLLMEvaluator builds an Evaluator around an llm.Provider.
func NewLLMEvaluator(provider Provider, lookup ExerciseLookup) *LLMEvaluator {
	return &LLMEvaluator{provider: provider, lookup: lookup}
}

func (e *LLMEvaluator) Evaluate(ctx context.Context, exerciseID, userAnswer, language string) (Result, error) {
	prompt, err := e.lookup(ctx, exerciseID)
	if err != nil {
		return Result{}, &aleerr.EvaluatorUnavailable{Err: fmt.Errorf("resolve exercise %s: %w", exerciseID, err)}
	}

	ctx = llm.WithPurpose(ctx, "evaluate_answer")
	req := llm.Request{
		System: "You are grading a student's answer to a programming exercise. " +
			"Be strict but fair: partial credit for answers that are on the right " +
			"track but incomplete or imprecise.",
		Prompt: fmt.Sprintf(
			"Language: %s\n\nExercise:\n%s\n\nStudent answer:\n%s\n\nGrade this answer.",
			language, prompt, userAnswer,
		),
		Schema:      responseSchema,
		Temperature: 0,
	}

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		return Result{}, &aleerr.EvaluatorUnavailable{Err: err}
	}

	var parsed evaluationResponse
	if err := json.Unmarshal(resp.Content, &parsed); err != nil {
		return Result{}, &aleerr.EvaluatorUnavailable{Err: fmt.Errorf("unmarshal evaluation response: %w", err)}
	}

	return Result{
		Score:    clamp01(parsed.Score),
		Feedback: parsed.Feedback,
		Correct:  parsed.Correct,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
