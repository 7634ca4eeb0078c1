package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/studymesh/ale/internal/model"
)

type corpusRepo struct {
	db *sql.DB
}

func (r *corpusRepo) PutTopic(ctx context.Context, t model.Topic) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO topics (id, course_id, name, language)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET course_id=excluded.course_id,
			name=excluded.name, language=excluded.language`,
		t.ID, t.CourseID, t.Name, t.Language)
	return err
}

func (r *corpusRepo) PutCoreLoop(ctx context.Context, c model.CoreLoop) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO core_loops (id, name, type, topic_id, language)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type,
			topic_id=excluded.topic_id, language=excluded.language`,
		c.ID, c.Name, string(c.Type), c.TopicID, c.Language)
	return err
}

func (r *corpusRepo) PutExercise(ctx context.Context, e model.Exercise) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		analyzed := 0
		if e.Analyzed {
			analyzed = 1
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO exercises
			(id, course_id, topic_id, primary_core_loop_id, difficulty, type, tags, analyzed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET course_id=excluded.course_id,
				topic_id=excluded.topic_id, primary_core_loop_id=excluded.primary_core_loop_id,
				difficulty=excluded.difficulty, type=excluded.type, tags=excluded.tags,
				analyzed=excluded.analyzed`,
			e.ID, e.CourseID, e.TopicID, e.PrimaryCoreLoop(), string(e.Difficulty), string(e.Type),
			strings.Join(e.Tags, ","), analyzed)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM exercise_core_loops WHERE exercise_id = ?`, e.ID); err != nil {
			return err
		}
		for i, cl := range e.CoreLoopIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO exercise_core_loops
				(exercise_id, core_loop_id, position) VALUES (?, ?, ?)`, e.ID, cl, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *corpusRepo) GetTopic(ctx context.Context, id string) (*model.Topic, error) {
	var t model.Topic
	err := r.db.QueryRowContext(ctx, `SELECT id, course_id, name, language FROM topics WHERE id = ?`, id).
		Scan(&t.ID, &t.CourseID, &t.Name, &t.Language)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *corpusRepo) GetCoreLoop(ctx context.Context, id string) (*model.CoreLoop, error) {
	var c model.CoreLoop
	var typ string
	err := r.db.QueryRowContext(ctx, `SELECT id, name, type, topic_id, language FROM core_loops WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &typ, &c.TopicID, &c.Language)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Type = model.CoreLoopType(typ)
	return &c, nil
}

func (r *corpusRepo) GetExercise(ctx context.Context, id string) (*model.Exercise, error) {
	var e model.Exercise
	var difficulty, typ, tags string
	var analyzed int
	err := r.db.QueryRowContext(ctx, `SELECT id, course_id, topic_id, difficulty, type, tags, analyzed
		FROM exercises WHERE id = ?`, id).
		Scan(&e.ID, &e.CourseID, &e.TopicID, &difficulty, &typ, &tags, &analyzed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Difficulty = model.Difficulty(difficulty)
	e.Type = model.ExerciseType(typ)
	e.Analyzed = analyzed != 0
	if tags != "" {
		e.Tags = strings.Split(tags, ",")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT core_loop_id FROM exercise_core_loops
		WHERE exercise_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cl string
		if err := rows.Scan(&cl); err != nil {
			return nil, err
		}
		e.CoreLoopIDs = append(e.CoreLoopIDs, cl)
	}
	return &e, rows.Err()
}

func (r *corpusRepo) ListCoreLoops(ctx context.Context, courseID string) ([]model.CoreLoop, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT cl.id, cl.name, cl.type, cl.topic_id, cl.language
		FROM core_loops cl JOIN topics t ON t.id = cl.topic_id
		WHERE t.course_id = ?`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CoreLoop
	for rows.Next() {
		var c model.CoreLoop
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.TopicID, &c.Language); err != nil {
			return nil, err
		}
		c.Type = model.CoreLoopType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *corpusRepo) ListExercises(ctx context.Context, courseID string, f model.Filters) ([]model.Exercise, error) {
	query := `SELECT DISTINCT e.id FROM exercises e
		LEFT JOIN exercise_core_loops ecl ON ecl.exercise_id = e.id
		WHERE e.course_id = ? AND e.analyzed = 1`
	args := []any{courseID}

	if f.TopicID != "" {
		query += " AND e.topic_id = ?"
		args = append(args, f.TopicID)
	}
	if f.CoreLoopID != "" {
		query += " AND ecl.core_loop_id = ?"
		args = append(args, f.CoreLoopID)
	}
	if f.Difficulty != "" {
		query += " AND e.difficulty = ?"
		args = append(args, string(f.Difficulty))
	}
	if f.Type != "" {
		query += " AND e.type = ?"
		args = append(args, string(f.Type))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Exercise, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetExercise(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load exercise %s: %w", id, err)
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *corpusRepo) ExerciseExists(ctx context.Context, id string) (bool, error) {
	var x int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM exercises WHERE id = ?`, id).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *corpusRepo) CoreLoopExists(ctx context.Context, id string) (bool, error) {
	var x int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM core_loops WHERE id = ?`, id).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
