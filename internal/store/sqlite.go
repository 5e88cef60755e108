package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/rcliao/memory-engine/internal/logging"
	"github.com/rcliao/memory-engine/internal/model"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const memoryColumns = `id, kind, category, title, content, tags, confidence, embedding,
	created_at, updated_at, last_accessed_at, access_count`

// SQLiteStore is one profile's database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *log.Logger

	// shortIndex is false when the short_id migration has not been applied.
	shortIndex bool
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// Transactions take the write lock at BEGIN so concurrent read-then-write
	// transactions wait on busy_timeout instead of failing the lock upgrade.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		path: dbPath,
		log:  logging.For("store").With("db", filepath.Base(dbPath)),
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.shortIndex = s.hasColumn(context.Background(), "memories", "short_id")

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertMemory stores a new memory. The caller assigns the id.
func (s *SQLiteStore) InsertMemory(ctx context.Context, m *model.Memory) error {
	if !model.ValidKinds[string(m.Kind)] {
		return fmt.Errorf("invalid kind %q", m.Kind)
	}

	cols := memoryColumns
	args := []any{
		m.ID, string(m.Kind), m.Category, m.Title, m.Content, encodeTags(m.Tags), m.Confidence,
		EncodeVector(m.Embedding), formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		formatTimePtr(m.LastAccessedAt), m.AccessCount,
	}
	if s.shortIndex {
		cols += ", short_id"
		args = append(args, m.ShortID())
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (`+cols+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// GetMemory fetches a memory by exact id.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ResolveMemory looks a memory up by exact id, then by its 8-character short id.
func (s *SQLiteStore) ResolveMemory(ctx context.Context, ref string) (*model.Memory, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty memory id: %w", ErrNotFound)
	}

	m, err := s.GetMemory(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return m, err
	}
	if len(ref) != model.ShortIDLen {
		return nil, err
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE short_id = ? LIMIT 2`
	if !s.shortIndex {
		query = `SELECT ` + memoryColumns + ` FROM memories WHERE substr(id, 1, 8) = ? LIMIT 2`
	}
	matches, err := s.queryMemories(ctx, query, ref)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("memory %s: %w", ref, ErrNotFound)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("memory %s: %w", ref, ErrAmbiguous)
	}
}

// UpdateMemory rewrites the mutable fields of an existing memory.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, m *model.Memory) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET category = ?, title = ?, content = ?, tags = ?, confidence = ?,
		        embedding = ?, updated_at = ?
		 WHERE id = ?`,
		m.Category, m.Title, m.Content, encodeTags(m.Tags), m.Confidence,
		EncodeVector(m.Embedding), formatTime(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

// DeleteMemory removes a memory and every link touching it.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) (bool, error) {
	n, err := s.DeleteMemories(ctx, []string{id})
	return n > 0, err
}

// DeleteMemories removes memories and their links in one transaction.
func (s *SQLiteStore) DeleteMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleted, err := deleteMemoriesTx(ctx, tx, ids)
	if err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

func deleteMemoriesTx(ctx context.Context, tx *sql.Tx, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM memory_links WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
			return 0, fmt.Errorf("delete links: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("delete memory: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}
	return deleted, nil
}

// AbsorbMemories folds the removed memories into the target.
func (s *SQLiteStore) AbsorbMemories(ctx context.Context, p AbsorbParams) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE memories SET tags = ?, access_count = access_count + ?, updated_at = ? WHERE id = ?`,
		encodeTags(p.Tags), p.AccessDelta, formatTime(p.At), p.TargetID)
	if err != nil {
		return 0, fmt.Errorf("update target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("memory %s: %w", p.TargetID, ErrNotFound)
	}

	deleted, err := deleteMemoriesTx(ctx, tx, p.RemoveIDs)
	if err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

// AllMemories loads every memory with decoded vectors, oldest first.
func (s *SQLiteStore) AllMemories(ctx context.Context) ([]model.Memory, error) {
	return s.queryMemories(ctx, `SELECT `+memoryColumns+` FROM memories ORDER BY created_at, id`)
}

// RecordAccess bumps access_count and last_accessed_at for each id.
func (s *SQLiteStore) RecordAccess(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := formatTime(at)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
			ts, id); err != nil {
			return fmt.Errorf("record access: %w", err)
		}
	}
	return tx.Commit()
}

// PruneCandidates returns never-accessed memories created before the cutoff.
func (s *SQLiteStore) PruneCandidates(ctx context.Context, before time.Time) ([]model.Memory, error) {
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE access_count = 0 AND created_at < ?
		 ORDER BY created_at`, formatTime(before))
}

// CountMemories returns the number of stored memories.
func (s *SQLiteStore) CountMemories(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// CountMemoriesAt counts memories in another profile's database without migrating it.
func CountMemoriesAt(ctx context.Context, dbPath string) (int, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var kind, createdAt, updatedAt string
	var tagsJSON, lastAccessed sql.NullString
	var blob []byte

	err := row.Scan(
		&m.ID, &kind, &m.Category, &m.Title, &m.Content, &tagsJSON, &m.Confidence, &blob,
		&createdAt, &updatedAt, &lastAccessed, &m.AccessCount,
	)
	if err != nil {
		return m, err
	}

	m.Kind = model.Kind(kind)
	m.Embedding = DecodeVector(blob)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	if lastAccessed.Valid {
		t := parseTime(lastAccessed.String)
		m.LastAccessedAt = &t
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	return m, nil
}

func encodeTags(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	s := string(b)
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// likePattern escapes LIKE wildcards so the query matches literally.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
