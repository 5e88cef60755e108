package store

import (
	"context"
	"errors"

	"github.com/rcliao/memory-engine/internal/model"
)

// ExportAll returns every memory, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Memory, error) {
	return s.AllMemories(ctx)
}

// Import stores memories from an export, keeping their ids. Memories whose id
// already exists are skipped.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for i := range memories {
		m := memories[i]
		if _, err := s.GetMemory(ctx, m.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return imported, err
		}
		if err := s.InsertMemory(ctx, &m); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
