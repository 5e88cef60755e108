package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/memory-engine/internal/model"
)

// InsertDecision appends a decision record. Decisions are never updated.
func (s *SQLiteStore) InsertDecision(ctx context.Context, d *model.Decision) error {
	if d.ID == "" {
		d.ID = ulid.Make().String()
	}
	var sessionID *string
	if d.SessionID != "" {
		sessionID = &d.SessionID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, session_id, decision, context, rationale, alternatives, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, sessionID, d.Decision, d.Context, d.Rationale, encodeTags(d.Alternatives), formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// SearchDecisions matches the query as a substring of decision or context,
// newest first. An empty query lists the most recent decisions.
func (s *SQLiteStore) SearchDecisions(ctx context.Context, query string, limit int) ([]model.Decision, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id, session_id, decision, context, rationale, alternatives, created_at FROM decisions`
	var args []any
	if query = strings.TrimSpace(query); query != "" {
		pattern := likePattern(strings.ToLower(query))
		q += ` WHERE lower(decision) LIKE ? ESCAPE '\' OR lower(context) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanDecisions(rows)
}

// MatchDecisions returns decisions whose decision or context contains any of
// the terms, ranked by how many terms they contain and then by recency.
func (s *SQLiteStore) MatchDecisions(ctx context.Context, terms []string, limit int) ([]model.Decision, error) {
	if len(terms) == 0 {
		return []model.Decision{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	cases := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, term := range terms {
		cases[i] = `(CASE WHEN lower(decision || ' ' || context) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`
		args = append(args, likePattern(strings.ToLower(term)))
	}
	args = append(args, limit)

	q := `SELECT id, session_id, decision, context, rationale, alternatives, created_at FROM (
		SELECT *, ` + strings.Join(cases, " + ") + ` AS matched FROM decisions
	) WHERE matched > 0 ORDER BY matched DESC, created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanDecisions(rows)
}

func scanDecisions(rows *sql.Rows) ([]model.Decision, error) {
	defer rows.Close()

	decisions := []model.Decision{}
	for rows.Next() {
		var d model.Decision
		var sessionID, alternatives sql.NullString
		var createdAt string
		if err := rows.Scan(&d.ID, &sessionID, &d.Decision, &d.Context, &d.Rationale, &alternatives, &createdAt); err != nil {
			return nil, err
		}
		d.SessionID = sessionID.String
		d.CreatedAt = parseTime(createdAt)
		if alternatives.Valid {
			json.Unmarshal([]byte(alternatives.String), &d.Alternatives)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// CountDecisions returns the number of logged decisions.
func (s *SQLiteStore) CountDecisions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n)
	return n, err
}
