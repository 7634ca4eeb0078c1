package llm

import (
	"context"
	"encoding/json"
)

// Provider is the backend the Answer Evaluator grades through. Every
// grading call is single-turn: a system prompt establishing the grading
// rubric, and one user-role prompt carrying the exercise and the
// student's answer. There is no multi-turn conversation in this
// workload, so the request shape is a single prompt rather than a
// message history.
type Provider interface {
	// Generate sends a grading prompt to the LLM and returns a structured
	// response. The request's Schema field, when set, instructs the
	// provider to return JSON conforming to that schema. The response
	// Content will be the validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes a single grading call to the LLM.
type Request struct {
	// System is the system prompt. Establishes the grading rubric and
	// the LLM's role as an answer evaluator.
	System string

	// Prompt is the single user-role turn: the exercise plus the
	// student's answer, already formatted for grading.
	Prompt string

	// Schema is the JSON Schema the response must conform to.
	// When set, the provider uses its native structured output mechanism.
	// When nil, the response Content is raw text as json.RawMessage.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	// The Answer Evaluator always grades at 0.0 (deterministic).
	Temperature float64
}

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (schema name for OpenAI, and the key
	// under which the compiled schema is cached). Kebab-case, e.g.
	// "answer-evaluation".
	Name string

	// Description is a human-readable description of what this schema
	// represents. Sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated output. When a Schema was provided in the
	// request, this is the validated JSON object. When no Schema was
	// provided, this is the raw text response as-is, cast to json.RawMessage.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
