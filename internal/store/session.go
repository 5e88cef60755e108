package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/memory-engine/internal/model"
)

const sessionColumns = `id, started_at, ended_at, phase, task_summary, outcome`

// BeginSession ends every active session and starts a new one in a single
// transaction. It returns the new session and the ids of the sessions it closed.
func (s *SQLiteStore) BeginSession(ctx context.Context, summary, phase string, at time.Time) (*model.Session, []string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM sessions WHERE ended_at IS NULL`)
	if err != nil {
		return nil, nil, err
	}
	var closed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		closed = append(closed, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	ts := formatTime(at)
	if len(closed) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET ended_at = ? WHERE ended_at IS NULL`, ts); err != nil {
			return nil, nil, fmt.Errorf("end previous session: %w", err)
		}
	}

	sess := &model.Session{
		ID:          ulid.Make().String(),
		StartedAt:   at,
		Phase:       phase,
		TaskSummary: summary,
		Checkpoints: []model.Checkpoint{},
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, phase, task_summary) VALUES (?, ?, ?, ?)`,
		sess.ID, ts, sess.Phase, sess.TaskSummary); err != nil {
		return nil, nil, fmt.Errorf("insert session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return sess, closed, nil
}

// ActiveSession returns the open session with its checkpoints.
func (s *SQLiteStore) ActiveSession(ctx context.Context) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE ended_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if sess.Checkpoints, err = s.Checkpoints(ctx, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession fetches a session by id with its checkpoints.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if sess.Checkpoints, err = s.Checkpoints(ctx, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// AddCheckpoint appends a checkpoint and, when phase is non-empty, moves the
// session to that phase. It returns the session's checkpoint count.
func (s *SQLiteStore) AddCheckpoint(ctx context.Context, cp model.Checkpoint) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE session_id = ?`, cp.SessionID).Scan(&seq); err != nil {
		return 0, err
	}
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (id, session_id, seq, phase, note, importance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.SessionID, seq+1, cp.Phase, cp.Note, cp.Importance, formatTime(cp.CreatedAt)); err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	if cp.Phase != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET phase = ? WHERE id = ?`, cp.Phase, cp.SessionID); err != nil {
			return 0, fmt.Errorf("update phase: %w", err)
		}
	}
	return seq + 1, tx.Commit()
}

// Checkpoints lists a session's checkpoints in the order they were added.
func (s *SQLiteStore) Checkpoints(ctx context.Context, sessionID string) ([]model.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, phase, note, importance, created_at FROM checkpoints
		 WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cps := []model.Checkpoint{}
	for rows.Next() {
		var cp model.Checkpoint
		var createdAt string
		if err := rows.Scan(&cp.ID, &cp.SessionID, &cp.Phase, &cp.Note, &cp.Importance, &createdAt); err != nil {
			return nil, err
		}
		cp.CreatedAt = parseTime(createdAt)
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// EndSession closes an active session and records its outcome.
func (s *SQLiteStore) EndSession(ctx context.Context, id, outcome string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, outcome = ? WHERE id = ? AND ended_at IS NULL`,
		formatTime(at), outcome, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("active session %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountSessions returns the total and active session counts.
func (s *SQLiteStore) CountSessions(ctx context.Context) (total, active int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN ended_at IS NULL THEN 1 ELSE 0 END), 0) FROM sessions`).
		Scan(&total, &active)
	return total, active, err
}

func scanSession(row scanner) (*model.Session, error) {
	var sess model.Session
	var startedAt string
	var endedAt, outcome sql.NullString
	if err := row.Scan(&sess.ID, &startedAt, &endedAt, &sess.Phase, &sess.TaskSummary, &outcome); err != nil {
		return nil, err
	}
	sess.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		sess.EndedAt = &t
	}
	sess.Outcome = outcome.String
	return &sess, nil
}
