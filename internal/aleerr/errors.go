// Package aleerr defines the error taxonomy shared across the adaptive
// learning engine's packages. Each variant is its own struct type
// satisfying error, matching on errors.As rather than string comparison.
package aleerr

import "fmt"

// NoCandidates indicates no exercises matched the selector's filters.
type NoCandidates struct {
	CourseID string
	Filters  string
}

func (e *NoCandidates) Error() string {
	return fmt.Sprintf("no candidate exercises for course %s (filters: %s)", e.CourseID, e.Filters)
}

// InvalidFilter indicates a filter referred to a topic or core loop that
// doesn't exist in the corpus.
type InvalidFilter struct {
	Field string
	Value string
}

func (e *InvalidFilter) Error() string {
	return fmt.Sprintf("invalid filter: %s %q does not exist", e.Field, e.Value)
}

// SessionNotFound indicates the referenced session id has no record.
type SessionNotFound struct {
	SessionID string
}

func (e *SessionNotFound) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// SessionBusy indicates a concurrent operation already holds the
// session's lock.
type SessionBusy struct {
	SessionID string
}

func (e *SessionBusy) Error() string {
	return fmt.Sprintf("session %s is busy with another operation", e.SessionID)
}

// SessionComplete indicates an operation was attempted against a
// session that has already completed or been abandoned.
type SessionComplete struct {
	SessionID string
}

func (e *SessionComplete) Error() string {
	return fmt.Sprintf("session %s is already complete", e.SessionID)
}

// AlreadyAnswered indicates a resubmission of a question slot that
// already has a recorded answer.
type AlreadyAnswered struct {
	SessionID   string
	QuestionIdx int
}

func (e *AlreadyAnswered) Error() string {
	return fmt.Sprintf("session %s question %d already answered", e.SessionID, e.QuestionIdx)
}

// OutOfOrderSubmission indicates an answer was submitted for a question
// slot other than the session's current one.
type OutOfOrderSubmission struct {
	SessionID string
	Expected  int
	Got       int
}

func (e *OutOfOrderSubmission) Error() string {
	return fmt.Sprintf("session %s expected answer for question %d, got %d", e.SessionID, e.Expected, e.Got)
}

// EvaluatorUnavailable indicates the external Answer Evaluator call
// failed or was canceled.
type EvaluatorUnavailable struct {
	Err error
}

func (e *EvaluatorUnavailable) Error() string {
	return fmt.Sprintf("answer evaluator unavailable: %v", e.Err)
}

func (e *EvaluatorUnavailable) Unwrap() error { return e.Err }

// PrerequisiteBlocked is advisory: the student lacks mastery on one or
// more prerequisites of the requested core loop. Not fatal — callers may
// override and proceed anyway.
type PrerequisiteBlocked struct {
	CoreLoopID  string
	WeakPrereqs []string
}

func (e *PrerequisiteBlocked) Error() string {
	return fmt.Sprintf("core loop %s has weak prerequisites: %v", e.CoreLoopID, e.WeakPrereqs)
}

// WouldCreateCycle indicates a prerequisite edge was rejected because it
// would introduce a cycle into the prerequisite graph.
type WouldCreateCycle struct {
	PrereqCoreLoopID    string
	DependentCoreLoopID string
}

func (e *WouldCreateCycle) Error() string {
	return fmt.Sprintf("edge %s -> %s would create a cycle", e.PrereqCoreLoopID, e.DependentCoreLoopID)
}

// InternalInvariantViolated indicates a bug: an invariant the codebase
// assumes always holds was violated. The current operation must abort
// transactionally; it is never silently masked.
type InternalInvariantViolated struct {
	Invariant string
	Detail    string
}

func (e *InternalInvariantViolated) Error() string {
	return fmt.Sprintf("internal invariant violated (%s): %s", e.Invariant, e.Detail)
}
