package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"automated-kingdom/server/internal/telemetry"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS snapshots (
		session_id TEXT PRIMARY KEY,
		tick BIGINT NOT NULL,
		saved_at BIGINT NOT NULL,
		data BYTEA NOT NULL
	);`,
	upsert: `INSERT INTO snapshots (session_id, tick, saved_at, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET tick = EXCLUDED.tick, saved_at = EXCLUDED.saved_at, data = EXCLUDED.data`,
	load:   `SELECT data FROM snapshots WHERE session_id = $1`,
	list:   `SELECT session_id, tick, saved_at, octet_length(data) FROM snapshots ORDER BY saved_at, session_id`,
	delete: `DELETE FROM snapshots WHERE session_id = $1`,
}

// OpenPostgres connects to a Postgres snapshot store.
func OpenPostgres(dsn string, logger telemetry.Logger) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := newSQLStore(db, postgresDialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
