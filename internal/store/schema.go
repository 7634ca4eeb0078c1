package store

import "database/sql"

// createSchema creates every table the store needs if it doesn't
// already exist. Called once on Open; safe to call repeatedly.
func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			name TEXT NOT NULL,
			language TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS core_loops (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			topic_id TEXT NOT NULL REFERENCES topics(id),
			language TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			topic_id TEXT NOT NULL REFERENCES topics(id),
			primary_core_loop_id TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL,
			type TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '',
			analyzed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS exercise_core_loops (
			exercise_id TEXT NOT NULL REFERENCES exercises(id),
			core_loop_id TEXT NOT NULL REFERENCES core_loops(id),
			position INTEGER NOT NULL,
			PRIMARY KEY (exercise_id, core_loop_id)
		)`,
		`CREATE TABLE IF NOT EXISTS review_state (
			student_id TEXT NOT NULL,
			core_loop_id TEXT NOT NULL REFERENCES core_loops(id),
			easiness_factor REAL NOT NULL DEFAULT 2.5,
			repetition_number INTEGER NOT NULL DEFAULT 0,
			interval_days INTEGER NOT NULL DEFAULT 0,
			next_review TEXT,
			last_reviewed TEXT,
			total_attempts INTEGER NOT NULL DEFAULT 0,
			correct_attempts INTEGER NOT NULL DEFAULT 0,
			mastery_score REAL NOT NULL DEFAULT 0,
			recent_outcomes TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (student_id, core_loop_id)
		)`,
		`CREATE TABLE IF NOT EXISTS topic_mastery (
			student_id TEXT NOT NULL,
			topic_id TEXT NOT NULL REFERENCES topics(id),
			mastery_score REAL NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL,
			PRIMARY KEY (student_id, topic_id)
		)`,
		`CREATE TABLE IF NOT EXISTS course_mastery (
			student_id TEXT NOT NULL,
			course_id TEXT NOT NULL,
			mastery_score REAL NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL,
			PRIMARY KEY (student_id, course_id)
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_sessions (
			id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			quiz_type TEXT NOT NULL,
			filter_topic_id TEXT NOT NULL DEFAULT '',
			filter_core_loop_id TEXT NOT NULL DEFAULT '',
			filter_difficulty TEXT NOT NULL DEFAULT '',
			filter_type TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			completed_at TEXT,
			question_ids TEXT NOT NULL,
			state TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_answers (
			session_id TEXT NOT NULL REFERENCES quiz_sessions(id),
			question_idx INTEGER NOT NULL,
			exercise_id TEXT NOT NULL,
			user_answer TEXT NOT NULL,
			score REAL NOT NULL,
			correct INTEGER NOT NULL,
			hint_used INTEGER NOT NULL DEFAULT 0,
			time_taken_s REAL NOT NULL DEFAULT 0,
			submitted_at TEXT NOT NULL,
			PRIMARY KEY (session_id, question_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS prerequisite_edges (
			prereq_core_loop_id TEXT NOT NULL REFERENCES core_loops(id),
			dependent_core_loop_id TEXT NOT NULL REFERENCES core_loops(id),
			PRIMARY KEY (prereq_core_loop_id, dependent_core_loop_id)
		)`,
		`CREATE TABLE IF NOT EXISTS llm_request_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sequence INTEGER NOT NULL,
			timestamp TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			purpose TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			request_body TEXT NOT NULL DEFAULT '',
			response_body TEXT NOT NULL DEFAULT '',
			cost_usd REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exercises_course_primary_core_loop
			ON exercises(course_id, primary_core_loop_id)`,
		`CREATE INDEX IF NOT EXISTS idx_review_state_student_next_review
			ON review_state(student_id, next_review)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
