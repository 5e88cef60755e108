package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rcliao/memory-engine/internal/model"
)

// migration is one schema step. Steps run in order against PRAGMA user_version,
// each inside its own transaction, and must be safe to re-run.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{1, "base schema", migrateBaseSchema},
	{2, "memory kind constraint", migrateKindConstraint},
	{3, "short id index", migrateShortID},
	{4, "tool usage counters", migrateToolUsage},
}

// SchemaVersion is the version a fully migrated database reports.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate applies pending migrations. Only a failure of the base schema is
// returned; later failures are logged and leave the existing schema in place.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	current, err := s.userVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			if m.version == 1 {
				return fmt.Errorf("%s: %w", m.name, err)
			}
			s.log.Warn("migration failed, continuing with existing schema",
				"version", m.version, "name", m.name, "err", err)
			return nil
		}
		s.log.Debug("migration applied", "version", m.version, "name", m.name)
	}
	return nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) userVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v)
	return v, err
}

func (s *SQLiteStore) hasColumn(ctx context.Context, table, column string) bool {
	ok, _ := columnExists(ctx, s.db, table, column)
	return ok
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func columnExists(ctx context.Context, q queryer, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// legacyKinds is the kind set the first schema shipped with.
var legacyKinds = []model.Kind{model.KindSemantic, model.KindProcedural, model.KindEpisodic}

func kindCheck(kinds []model.Kind) string {
	quoted := make([]string, len(kinds))
	for i, k := range kinds {
		quoted[i] = "'" + string(k) + "'"
	}
	return "CHECK (kind IN (" + strings.Join(quoted, ", ") + "))"
}

func memoriesTableDDL(table string, kinds []model.Kind) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		id               TEXT PRIMARY KEY,
		kind             TEXT NOT NULL ` + kindCheck(kinds) + `,
		category         TEXT NOT NULL DEFAULT '',
		title            TEXT NOT NULL,
		content          TEXT NOT NULL,
		tags             TEXT,
		confidence       REAL NOT NULL DEFAULT 1.0,
		embedding        BLOB,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		last_accessed_at TEXT,
		access_count     INTEGER NOT NULL DEFAULT 0
	)`
}

const memoryIndexes = `
	CREATE INDEX IF NOT EXISTS idx_memories_kind ON memories(kind);
	CREATE INDEX IF NOT EXISTS idx_memories_access ON memories(access_count DESC, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);
`

func migrateBaseSchema(ctx context.Context, tx *sql.Tx) error {
	schema := memoriesTableDDL("memories", legacyKinds) + `;` + memoryIndexes + `

	CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT PRIMARY KEY,
		started_at   TEXT NOT NULL,
		ended_at     TEXT,
		phase        TEXT NOT NULL,
		task_summary TEXT NOT NULL,
		outcome      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		phase      TEXT NOT NULL,
		note       TEXT NOT NULL,
		importance TEXT NOT NULL DEFAULT 'normal',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, seq);

	CREATE TABLE IF NOT EXISTS decisions (
		id           TEXT PRIMARY KEY,
		session_id   TEXT,
		decision     TEXT NOT NULL,
		context      TEXT NOT NULL DEFAULT '',
		rationale    TEXT NOT NULL DEFAULT '',
		alternatives TEXT,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at DESC);

	CREATE TABLE IF NOT EXISTS memory_links (
		id           TEXT PRIMARY KEY,
		source_id    TEXT NOT NULL,
		target_id    TEXT NOT NULL,
		relationship TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		UNIQUE (source_id, target_id)
	);
	CREATE INDEX IF NOT EXISTS idx_links_target ON memory_links(target_id);
	`
	_, err := tx.ExecContext(ctx, schema)
	return err
}

// migrateKindConstraint rebuilds the memories table when its CHECK constraint
// does not accept every current kind.
func migrateKindConstraint(ctx context.Context, tx *sql.Tx) error {
	var ddl string
	if err := tx.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'memories'`).Scan(&ddl); err != nil {
		return fmt.Errorf("read memories ddl: %w", err)
	}
	missing := false
	for _, k := range model.Kinds {
		if !strings.Contains(ddl, "'"+string(k)+"'") {
			missing = true
			break
		}
	}
	if !missing {
		return nil
	}

	cols := `id, kind, category, title, content, tags, confidence, embedding,
		created_at, updated_at, last_accessed_at, access_count`
	stmts := []string{
		`DROP TABLE IF EXISTS memories_rebuild`,
		memoriesTableDDL("memories_rebuild", model.Kinds),
		`INSERT INTO memories_rebuild (` + cols + `) SELECT ` + cols + ` FROM memories`,
		`DROP TABLE memories`,
		`ALTER TABLE memories_rebuild RENAME TO memories`,
		memoryIndexes,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild memories: %w", err)
		}
	}
	return nil
}

func migrateShortID(ctx context.Context, tx *sql.Tx) error {
	exists, err := columnExists(ctx, tx, "memories", "short_id")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE memories ADD COLUMN short_id TEXT`); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE memories SET short_id = substr(id, 1, 8) WHERE short_id IS NULL`); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_memories_short_id ON memories(short_id)`)
	return err
}

func migrateToolUsage(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS tool_usage (
		tool_name       TEXT PRIMARY KEY,
		call_count      INTEGER NOT NULL DEFAULT 0,
		first_called_at TEXT NOT NULL,
		last_called_at  TEXT NOT NULL
	)`)
	return err
}
