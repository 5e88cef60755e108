package store

import (
	"context"
	"time"

	"github.com/rcliao/memory-engine/internal/model"
)

// RecordToolCall bumps the call counter for a tool.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, name string, at time.Time) error {
	ts := formatTime(at)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_usage (tool_name, call_count, first_called_at, last_called_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(tool_name) DO UPDATE SET
		   call_count = call_count + 1,
		   last_called_at = excluded.last_called_at`,
		name, ts, ts)
	return err
}

// ToolUsage lists call counters, busiest first.
func (s *SQLiteStore) ToolUsage(ctx context.Context) ([]model.ToolUsage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_name, call_count, first_called_at, last_called_at FROM tool_usage
		 ORDER BY call_count DESC, tool_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []model.ToolUsage{}
	for rows.Next() {
		var u model.ToolUsage
		var first, last string
		if err := rows.Scan(&u.ToolName, &u.CallCount, &first, &last); err != nil {
			return nil, err
		}
		u.FirstCalledAt = parseTime(first)
		u.LastCalledAt = parseTime(last)
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
