package store

import (
	"context"
	"database/sql"

	"github.com/studymesh/ale/internal/model"
)

type prereqRepo struct {
	db *sql.DB
}

func (r *prereqRepo) AddEdge(ctx context.Context, e model.PrerequisiteEdge) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO prerequisite_edges
		(prereq_core_loop_id, dependent_core_loop_id) VALUES (?, ?)`,
		e.PrereqCoreLoopID, e.DependentCoreLoopID)
	return err
}

func (r *prereqRepo) ListEdges(ctx context.Context) ([]model.PrerequisiteEdge, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT prereq_core_loop_id, dependent_core_loop_id
		FROM prerequisite_edges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PrerequisiteEdge
	for rows.Next() {
		var e model.PrerequisiteEdge
		if err := rows.Scan(&e.PrereqCoreLoopID, &e.DependentCoreLoopID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *prereqRepo) PrereqsOf(ctx context.Context, coreLoopID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT prereq_core_loop_id FROM prerequisite_edges
		WHERE dependent_core_loop_id = ?`, coreLoopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *prereqRepo) DependentsOf(ctx context.Context, coreLoopID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT dependent_core_loop_id FROM prerequisite_edges
		WHERE prereq_core_loop_id = ?`, coreLoopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
