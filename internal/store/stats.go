package store

import (
	"context"
	"os"

	"github.com/rcliao/memory-engine/internal/model"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string         `json:"db_path"`
	DBSizeBytes    int64          `json:"db_size_bytes"`
	TotalMemories  int            `json:"total_memories"`
	ByKind         map[string]int `json:"by_kind"`
	NeverAccessed  int            `json:"never_accessed"`
	TopAccessed    []model.Brief  `json:"top_accessed"`
	Links          int            `json:"links"`
	Sessions       int            `json:"sessions"`
	ActiveSessions int            `json:"active_sessions"`
	Decisions      int            `json:"decisions"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path, ByKind: map[string]int{}, TopAccessed: []model.Brief{}}

	// WAL mode keeps recent writes in the -wal file.
	for _, p := range []string{s.path, s.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			st.DBSizeBytes += info.Size()
		}
	}

	for _, k := range model.Kinds {
		st.ByKind[string(k)] = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM memories GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByKind[kind] = n
		st.TotalMemories += n
	}
	rows.Close()

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE access_count = 0`).Scan(&st.NeverAccessed); err != nil {
		return nil, err
	}

	top, err := s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE access_count > 0
		 ORDER BY access_count DESC, COALESCE(last_accessed_at, updated_at) DESC LIMIT 5`)
	if err != nil {
		return nil, err
	}
	for _, m := range top {
		st.TopAccessed = append(st.TopAccessed, m.Brief())
	}

	if st.Links, err = s.CountLinks(ctx); err != nil {
		return nil, err
	}
	if st.Sessions, st.ActiveSessions, err = s.CountSessions(ctx); err != nil {
		return nil, err
	}
	if st.Decisions, err = s.CountDecisions(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
