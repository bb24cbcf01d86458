package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/telemetry"
)

// ErrNotFound is returned when no snapshot is stored for a session.
var ErrNotFound = errors.New("persistence: snapshot not found")

// Entry describes a stored snapshot without loading it.
type Entry struct {
	SessionID string    `json:"sessionId"`
	Tick      uint64    `json:"tick"`
	SavedAt   time.Time `json:"savedAt"`
	Size      int       `json:"size"`
}

// Store saves and loads session snapshots. Saving a session again replaces
// its previous snapshot.
type Store interface {
	Save(ctx context.Context, sessionID string, snapshot sim.Snapshot) (Entry, error)
	Load(ctx context.Context, sessionID string) (sim.Snapshot, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// Open picks a store from a DSN. postgres:// and postgresql:// URLs open
// Postgres; anything else is a SQLite path, optionally prefixed by sqlite://.
func Open(dsn string, logger telemetry.Logger) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(dsn, logger)
	default:
		return OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"), logger)
	}
}

// dialect captures the SQL differences between the supported databases.
type dialect struct {
	name   string
	schema string
	upsert string
	load   string
	list   string
	delete string
}

// sqlStore implements Store over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  telemetry.Logger
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, logger telemetry.Logger) (*sqlStore, error) {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if _, err := db.Exec(d.schema); err != nil {
		return nil, fmt.Errorf("%s schema: %w", d.name, err)
	}
	return &sqlStore{db: db, dialect: d, logger: logger, now: time.Now}, nil
}

func (s *sqlStore) Save(ctx context.Context, sessionID string, snapshot sim.Snapshot) (Entry, error) {
	savedAt := s.now().UTC()
	data, err := Encode(Record{
		Header: Header{
			Version:   CodecVersion,
			SessionID: sessionID,
			Tick:      snapshot.Tick,
			SavedAt:   savedAt,
		},
		Snapshot: snapshot,
	})
	if err != nil {
		return Entry{}, err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, sessionID, int64(snapshot.Tick), savedAt.UnixNano(), data); err != nil {
		return Entry{}, fmt.Errorf("save %s: %w", sessionID, err)
	}
	s.logger.Printf("[persistence] saved session %s at tick %d (%s, %s)", sessionID, snapshot.Tick, humanize.Bytes(uint64(len(data))), s.dialect.name)
	return Entry{SessionID: sessionID, Tick: snapshot.Tick, SavedAt: savedAt, Size: len(data)}, nil
}

func (s *sqlStore) Load(ctx context.Context, sessionID string) (sim.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.dialect.load, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("load %s: %w", sessionID, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("load %s: %w", sessionID, err)
	}
	return rec.Snapshot, nil
}

func (s *sqlStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.list)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			tick    int64
			savedAt int64
		)
		if err := rows.Scan(&entry.SessionID, &tick, &savedAt, &entry.Size); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		entry.Tick = uint64(tick)
		entry.SavedAt = time.Unix(0, savedAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return entries, nil
}

func (s *sqlStore) Delete(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.delete, sessionID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", sessionID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
