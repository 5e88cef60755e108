package store

import (
	"context"
	"strings"

	"github.com/rcliao/memory-engine/internal/model"
)

// SearchText finds memories whose title, content or tags contain the query
// as a case-insensitive substring. Used when no query vector is available.
func (s *SQLiteStore) SearchText(ctx context.Context, p TextSearchParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	pattern := likePattern(strings.ToLower(strings.TrimSpace(p.Query)))
	where := []string{
		`(lower(title) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\' OR lower(COALESCE(tags, '')) LIKE ? ESCAPE '\')`,
	}
	args := []any{pattern, pattern, pattern}

	if len(p.Kinds) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(p.Kinds)), ", ")
		where = append(where, "kind IN ("+ph+")")
		for _, k := range p.Kinds {
			args = append(args, string(k))
		}
	}
	args = append(args, limit)

	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY access_count DESC, COALESCE(last_accessed_at, updated_at) DESC
		LIMIT ?`
	return s.queryMemories(ctx, query, args...)
}
