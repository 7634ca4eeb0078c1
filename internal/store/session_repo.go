package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/studymesh/ale/internal/model"
)

type sessionRepo struct {
	db    *sql.DB
	store *Store
}

func (r *sessionRepo) Lock(sessionID string) Locker {
	return r.store.sessionLock(sessionID)
}

func (r *sessionRepo) CreateSession(ctx context.Context, s model.QuizSession) error {
	var completedAt any
	if s.CompletedAt != nil {
		completedAt = s.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO quiz_sessions
		(id, course_id, student_id, quiz_type, filter_topic_id, filter_core_loop_id,
		 filter_difficulty, filter_type, created_at, completed_at, question_ids, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CourseID, s.StudentID, string(s.QuizType), s.Filters.TopicID,
		s.Filters.CoreLoopID, string(s.Filters.Difficulty), string(s.Filters.Type),
		s.CreatedAt.UTC().Format(time.RFC3339Nano), completedAt,
		strings.Join(s.QuestionIDs, ","), string(s.State))
	return err
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*model.QuizSession, error) {
	return r.get(ctx, r.db, id)
}

func (r *sessionRepo) get(ctx context.Context, q queryer, id string) (*model.QuizSession, error) {
	var s model.QuizSession
	var quizType, difficulty, typ, createdAt, questionIDs, state string
	var completedAt sql.NullString
	err := q.QueryRowContext(ctx, `SELECT id, course_id, student_id, quiz_type,
		filter_topic_id, filter_core_loop_id, filter_difficulty, filter_type,
		created_at, completed_at, question_ids, state
		FROM quiz_sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.CourseID, &s.StudentID, &quizType, &s.Filters.TopicID,
			&s.Filters.CoreLoopID, &difficulty, &typ, &createdAt, &completedAt,
			&questionIDs, &state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.QuizType = model.QuizType(quizType)
	s.Filters.Difficulty = model.Difficulty(difficulty)
	s.Filters.Type = model.ExerciseType(typ)
	s.State = model.SessionState(state)
	if questionIDs != "" {
		s.QuestionIDs = strings.Split(questionIDs, ",")
	}

	s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		s.CompletedAt = &t
	}
	return &s, nil
}

// UpdateSession assumes the caller already holds this session's lock
// (via Lock); it does not lock internally.
func (r *sessionRepo) UpdateSession(ctx context.Context, id string, fn func(model.QuizSession) model.QuizSession) (model.QuizSession, error) {
	var result model.QuizSession
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("session %s not found", id)
		}
		updated := fn(*current)

		var completedAt any
		if updated.CompletedAt != nil {
			completedAt = updated.CompletedAt.UTC().Format(time.RFC3339Nano)
		}
		_, err = tx.ExecContext(ctx, `UPDATE quiz_sessions SET completed_at = ?, state = ?
			WHERE id = ?`, completedAt, string(updated.State), id)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

func (r *sessionRepo) PutAnswer(ctx context.Context, a model.QuizAnswer) error {
	correct := 0
	if a.Correct {
		correct = 1
	}
	hint := 0
	if a.HintUsed {
		hint = 1
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO quiz_answers
		(session_id, question_idx, exercise_id, user_answer, score, correct,
		 hint_used, time_taken_s, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, question_idx) DO UPDATE SET
			exercise_id=excluded.exercise_id, user_answer=excluded.user_answer,
			score=excluded.score, correct=excluded.correct,
			hint_used=excluded.hint_used, time_taken_s=excluded.time_taken_s,
			submitted_at=excluded.submitted_at`,
		a.SessionID, a.QuestionIdx, a.ExerciseID, a.UserAnswer, a.Score, correct,
		hint, a.TimeTakenS, a.SubmittedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *sessionRepo) GetAnswer(ctx context.Context, sessionID string, idx int) (*model.QuizAnswer, error) {
	var a model.QuizAnswer
	var correct, hint int
	var ts string
	err := r.db.QueryRowContext(ctx, `SELECT session_id, question_idx, exercise_id,
		user_answer, score, correct, hint_used, time_taken_s, submitted_at
		FROM quiz_answers WHERE session_id = ? AND question_idx = ?`, sessionID, idx).
		Scan(&a.SessionID, &a.QuestionIdx, &a.ExerciseID, &a.UserAnswer, &a.Score,
			&correct, &hint, &a.TimeTakenS, &ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Correct = correct != 0
	a.HintUsed = hint != 0
	a.SubmittedAt, err = time.Parse(time.RFC3339Nano, ts)
	return &a, err
}

func (r *sessionRepo) ListAnswers(ctx context.Context, sessionID string) ([]model.QuizAnswer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session_id, question_idx, exercise_id,
		user_answer, score, correct, hint_used, time_taken_s, submitted_at
		FROM quiz_answers WHERE session_id = ? ORDER BY question_idx`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuizAnswer
	for rows.Next() {
		var a model.QuizAnswer
		var correct, hint int
		var ts string
		if err := rows.Scan(&a.SessionID, &a.QuestionIdx, &a.ExerciseID, &a.UserAnswer,
			&a.Score, &correct, &hint, &a.TimeTakenS, &ts); err != nil {
			return nil, err
		}
		a.Correct = correct != 0
		a.HintUsed = hint != 0
		a.SubmittedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
