// Package store provides the per-profile SQLite storage layer.
package store

import (
	"errors"
	"time"

	"github.com/rcliao/memory-engine/internal/model"
)

var (
	// ErrNotFound is returned when a memory, session or link does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when a short id matches more than one memory.
	ErrAmbiguous = errors.New("ambiguous short id")
)

// TextSearchParams holds parameters for the lexical fallback search.
type TextSearchParams struct {
	Query string
	Kinds []model.Kind
	Limit int
}

// AbsorbParams describes a merge applied in one transaction: the target takes
// over tags and access counts of the removed memories.
type AbsorbParams struct {
	TargetID    string
	Tags        []string
	AccessDelta int
	RemoveIDs   []string
	At          time.Time
}
