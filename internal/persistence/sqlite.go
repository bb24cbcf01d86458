package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"automated-kingdom/server/internal/telemetry"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS snapshots (
		session_id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);`,
	upsert: `INSERT INTO snapshots (session_id, tick, saved_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET tick = excluded.tick, saved_at = excluded.saved_at, data = excluded.data`,
	load:   `SELECT data FROM snapshots WHERE session_id = ?`,
	list:   `SELECT session_id, tick, saved_at, length(data) FROM snapshots ORDER BY saved_at, session_id`,
	delete: `DELETE FROM snapshots WHERE session_id = ?`,
}

// OpenSQLite opens (creating if needed) a SQLite snapshot store at path.
// ":memory:" keeps everything in process.
func OpenSQLite(path string, logger telemetry.Logger) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := newSQLStore(db, sqliteDialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}
