// Package model defines the core memory data types.
package model

import "time"

// Kind classifies a memory.
type Kind string

const (
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
	KindEpisodic   Kind = "episodic"
	KindSkill      Kind = "skill"
)

// Kinds is the closed set of memory kinds, in schema order.
var Kinds = []Kind{KindSemantic, KindProcedural, KindEpisodic, KindSkill}

// ValidKinds are the allowed memory kinds.
var ValidKinds = map[string]bool{
	"semantic":   true,
	"procedural": true,
	"episodic":   true,
	"skill":      true,
}

// Scope names the store a memory lives in.
type Scope string

const (
	ScopeProfile Scope = "profile"
	ScopeGlobal  Scope = "global"
	// ScopeAll is only meaningful for reads.
	ScopeAll Scope = "all"
)

// ShortIDLen is the length of the short id prefix accepted wherever a memory id is.
const ShortIDLen = 8

// Memory represents a stored memory entry.
type Memory struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Tags           []string   `json:"tags,omitempty"`
	Confidence     float64    `json:"confidence"`
	Embedding      []float32  `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int        `json:"access_count"`
	Scope          Scope      `json:"scope,omitempty"`
}

// ShortID returns the id prefix used for ergonomic references.
func (m Memory) ShortID() string {
	return ShortID(m.ID)
}

// HasEmbedding reports whether the memory carries a vector.
func (m Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// LastUsed is the last access time, or the creation time for never-accessed memories.
func (m Memory) LastUsed() time.Time {
	if m.LastAccessedAt != nil {
		return *m.LastAccessedAt
	}
	return m.CreatedAt
}

// ShortID truncates an id to its short form.
func ShortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}
	return id[:ShortIDLen]
}

// Brief is a compact memory reference used in listings.
type Brief struct {
	ID          string `json:"id"`
	ShortID     string `json:"short_id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	AccessCount int    `json:"access_count"`
	Scope       Scope  `json:"scope,omitempty"`
}

// Brief returns the compact form of m.
func (m Memory) Brief() Brief {
	return Brief{
		ID:          m.ID,
		ShortID:     m.ShortID(),
		Kind:        m.Kind,
		Title:       m.Title,
		AccessCount: m.AccessCount,
		Scope:       m.Scope,
	}
}
