package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/studymesh/ale/internal/model"
)

type reviewRepo struct {
	db    *sql.DB
	store *Store
}

func (r *reviewRepo) Get(ctx context.Context, studentID, coreLoopID string) (model.ReviewState, error) {
	return r.get(ctx, r.db, studentID, coreLoopID)
}

func (r *reviewRepo) get(ctx context.Context, q queryer, studentID, coreLoopID string) (model.ReviewState, error) {
	rs := model.NewReviewState(studentID, coreLoopID)

	var nextReview, lastReviewed sql.NullString
	var recentOutcomes string
	err := q.QueryRowContext(ctx, `SELECT easiness_factor, repetition_number,
		interval_days, next_review, last_reviewed, total_attempts,
		correct_attempts, mastery_score, recent_outcomes FROM review_state
		WHERE student_id = ? AND core_loop_id = ?`, studentID, coreLoopID).
		Scan(&rs.EasinessFactor, &rs.RepetitionNumber, &rs.IntervalDays,
			&nextReview, &lastReviewed, &rs.TotalAttempts, &rs.CorrectAttempts,
			&rs.MasteryScore, &recentOutcomes)
	if err == sql.ErrNoRows {
		return rs, nil
	}
	if err != nil {
		return rs, err
	}
	rs.RecentOutcomes = decodeOutcomes(recentOutcomes)

	if nextReview.Valid {
		t, err := time.Parse(time.RFC3339Nano, nextReview.String)
		if err != nil {
			return rs, fmt.Errorf("parse next_review: %w", err)
		}
		rs.NextReview = &t
	}
	if lastReviewed.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastReviewed.String)
		if err != nil {
			return rs, fmt.Errorf("parse last_reviewed: %w", err)
		}
		rs.LastReviewed = &t
	}
	return rs, nil
}

// Update serializes all writers for a given (student, core_loop) pair
// through an in-process mutex, so the read-modify-write done by fn is
// atomic with respect to concurrent callers in this process.
func (r *reviewRepo) Update(ctx context.Context, studentID, coreLoopID string, fn func(model.ReviewState) model.ReviewState) (model.ReviewState, error) {
	lock := r.store.reviewLock(studentID, coreLoopID)
	lock.Lock()
	defer lock.Unlock()

	var result model.ReviewState
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := r.get(ctx, tx, studentID, coreLoopID)
		if err != nil {
			return err
		}
		updated := fn(current)
		if err := r.put(ctx, tx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

func (r *reviewRepo) put(ctx context.Context, tx *sql.Tx, rs model.ReviewState) error {
	var nextReview, lastReviewed any
	if rs.NextReview != nil {
		nextReview = rs.NextReview.UTC().Format(time.RFC3339Nano)
	}
	if rs.LastReviewed != nil {
		lastReviewed = rs.LastReviewed.UTC().Format(time.RFC3339Nano)
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO review_state
		(student_id, core_loop_id, easiness_factor, repetition_number,
		 interval_days, next_review, last_reviewed, total_attempts,
		 correct_attempts, mastery_score, recent_outcomes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, core_loop_id) DO UPDATE SET
			easiness_factor=excluded.easiness_factor,
			repetition_number=excluded.repetition_number,
			interval_days=excluded.interval_days,
			next_review=excluded.next_review,
			last_reviewed=excluded.last_reviewed,
			total_attempts=excluded.total_attempts,
			correct_attempts=excluded.correct_attempts,
			mastery_score=excluded.mastery_score,
			recent_outcomes=excluded.recent_outcomes`,
		rs.StudentID, rs.CoreLoopID, rs.EasinessFactor, rs.RepetitionNumber,
		rs.IntervalDays, nextReview, lastReviewed, rs.TotalAttempts,
		rs.CorrectAttempts, rs.MasteryScore, encodeOutcomes(rs.RecentOutcomes))
	return err
}

// encodeOutcomes/decodeOutcomes store RecentOutcomes as a compact
// "1,0,1" string — there are at most RecentOutcomesCap of them, so a
// dedicated table would be overkill.
func encodeOutcomes(outcomes []bool) string {
	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		if o {
			parts[i] = "1"
		} else {
			parts[i] = "0"
		}
	}
	return strings.Join(parts, ",")
}

func decodeOutcomes(s string) []bool {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]bool, len(parts))
	for i, p := range parts {
		out[i] = p == "1"
	}
	return out
}

func (r *reviewRepo) ListAll(ctx context.Context, studentID string, coreLoopIDs []string) ([]model.ReviewState, error) {
	if len(coreLoopIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(coreLoopIDs)), ",")
	args := make([]any, 0, len(coreLoopIDs)+1)
	args = append(args, studentID)
	for _, id := range coreLoopIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT core_loop_id FROM review_state
		WHERE student_id = ? AND core_loop_id IN (%s)`, placeholders)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var found []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		found = append(found, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}

	out := make([]model.ReviewState, 0, len(coreLoopIDs))
	for _, id := range coreLoopIDs {
		if !seen[id] {
			out = append(out, model.NewReviewState(studentID, id))
			continue
		}
		rs, err := r.get(ctx, r.db, studentID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

func (r *reviewRepo) ListDue(ctx context.Context, studentID string, coreLoopIDs []string, now time.Time) ([]model.ReviewState, error) {
	all, err := r.ListAll(ctx, studentID, coreLoopIDs)
	if err != nil {
		return nil, err
	}
	due := make([]model.ReviewState, 0, len(all))
	for _, rs := range all {
		if rs.Due(now) {
			due = append(due, rs)
		}
	}
	return due, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
