package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/studymesh/ale/internal/model"
)

type masteryRepo struct {
	db *sql.DB
}

func (r *masteryRepo) GetTopicMastery(ctx context.Context, studentID, topicID string) (model.TopicMastery, error) {
	m := model.TopicMastery{StudentID: studentID, TopicID: topicID}
	var ts string
	err := r.db.QueryRowContext(ctx, `SELECT mastery_score, last_updated FROM topic_mastery
		WHERE student_id = ? AND topic_id = ?`, studentID, topicID).
		Scan(&m.MasteryScore, &ts)
	if err == sql.ErrNoRows {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	m.LastUpdated, err = time.Parse(time.RFC3339Nano, ts)
	return m, err
}

func (r *masteryRepo) PutTopicMastery(ctx context.Context, m model.TopicMastery) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO topic_mastery
		(student_id, topic_id, mastery_score, last_updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(student_id, topic_id) DO UPDATE SET
			mastery_score=excluded.mastery_score, last_updated=excluded.last_updated`,
		m.StudentID, m.TopicID, m.MasteryScore, m.LastUpdated.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *masteryRepo) GetCourseMastery(ctx context.Context, studentID, courseID string) (model.CourseMastery, error) {
	m := model.CourseMastery{StudentID: studentID, CourseID: courseID}
	var ts string
	err := r.db.QueryRowContext(ctx, `SELECT mastery_score, last_updated FROM course_mastery
		WHERE student_id = ? AND course_id = ?`, studentID, courseID).
		Scan(&m.MasteryScore, &ts)
	if err == sql.ErrNoRows {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	m.LastUpdated, err = time.Parse(time.RFC3339Nano, ts)
	return m, err
}

func (r *masteryRepo) PutCourseMastery(ctx context.Context, m model.CourseMastery) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO course_mastery
		(student_id, course_id, mastery_score, last_updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(student_id, course_id) DO UPDATE SET
			mastery_score=excluded.mastery_score, last_updated=excluded.last_updated`,
		m.StudentID, m.CourseID, m.MasteryScore, m.LastUpdated.UTC().Format(time.RFC3339Nano))
	return err
}
