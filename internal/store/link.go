package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/memory-engine/internal/model"
)

// UpsertLink records a directed edge. A second link between the same ordered
// pair replaces the relationship of the first.
func (s *SQLiteStore) UpsertLink(ctx context.Context, sourceID, targetID, rel string, at time.Time) (*model.Link, error) {
	if sourceID == targetID {
		return nil, fmt.Errorf("cannot link a memory to itself")
	}
	if !model.ValidRelationships[rel] {
		return nil, fmt.Errorf("invalid relationship %q", rel)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_links (id, source_id, target_id, relationship, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id) DO UPDATE SET relationship = excluded.relationship`,
		ulid.Make().String(), sourceID, targetID, rel, formatTime(at))
	if err != nil {
		return nil, fmt.Errorf("upsert link: %w", err)
	}

	var l model.Link
	var createdAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, source_id, target_id, relationship, created_at FROM memory_links
		 WHERE source_id = ? AND target_id = ?`, sourceID, targetID).
		Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Relationship, &createdAt)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = parseTime(createdAt)
	return &l, nil
}

// LinksFor returns the outgoing and incoming links of a memory.
func (s *SQLiteStore) LinksFor(ctx context.Context, id string) (out, in []model.Link, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, relationship, created_at FROM memory_links
		 WHERE source_id = ? OR target_id = ?
		 ORDER BY created_at, id`, id, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l model.Link
		var createdAt string
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Relationship, &createdAt); err != nil {
			return nil, nil, err
		}
		l.CreatedAt = parseTime(createdAt)
		if l.SourceID == id {
			out = append(out, l)
		} else {
			in = append(in, l)
		}
	}
	return out, in, rows.Err()
}

// DeleteLink removes the edge between an ordered pair.
func (s *SQLiteStore) DeleteLink(ctx context.Context, sourceID, targetID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_links WHERE source_id = ? AND target_id = ?`, sourceID, targetID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteLinksTouching removes links whose source or target is one of ids.
// Used for links that cross into another profile's store.
func (s *SQLiteStore) DeleteLinksTouching(ctx context.Context, ids ...string) (int, error) {
	total := 0
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM memory_links WHERE source_id = ? OR target_id = ?`, id, id)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

// CountLinks returns the number of stored links.
func (s *SQLiteStore) CountLinks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_links`).Scan(&n)
	return n, err
}
