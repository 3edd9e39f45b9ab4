package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// schemaVersion is stored in PRAGMA user_version. Opening a database written by a newer
// gardener fails instead of guessing at its layout.
const schemaVersion = 1

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS build_events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id   TEXT    NOT NULL,
		event_type TEXT    NOT NULL,
		created_ms INTEGER NOT NULL,
		payload    BLOB    NOT NULL,
		metadata   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS build_events_build ON build_events(build_id)`,
	`CREATE INDEX IF NOT EXISTS build_events_created ON build_events(created_ms)`,
}

const selectEvents = `SELECT seq, build_id, event_type, created_ms, payload, metadata FROM build_events `

// SQLiteStore is the Store behind `gardener history`. One file per site, next to the
// output directory unless configured elsewhere.
type SQLiteStore struct {
	mu  sync.RWMutex
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens dbPath, creating the file and its parent directories as needed.
// ":memory:" opens a private in-memory store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, wrap(ErrDatabaseOpenFailed, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(ErrDatabaseOpenFailed, err)
	}
	// In-memory databases live per connection, and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, wrap(ErrInitializeSchemaFailed, err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var current int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return err
	}
	if current > schemaVersion {
		return errSchemaTooNew(current)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	// PRAGMA takes no placeholders.
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Append stores one event stamped with the current time.
func (s *SQLiteStore) Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error {
	var meta sql.NullString
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return wrap(ErrEventAppendFailed, err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}
	if payload == nil {
		payload = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_events (build_id, event_type, created_ms, payload, metadata) VALUES (?, ?, ?, ?, ?)`,
		buildID, eventType, s.now().UnixMilli(), payload, meta)
	if err != nil {
		return wrap(ErrEventAppendFailed, err)
	}
	return nil
}

// GetByBuildID returns the events of one build in append order.
func (s *SQLiteStore) GetByBuildID(ctx context.Context, buildID string) ([]Event, error) {
	return s.query(ctx, `WHERE build_id = ? ORDER BY seq`, buildID)
}

func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, `WHERE created_ms BETWEEN ? AND ? ORDER BY seq`, start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, clause string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectEvents+clause, args...)
	if err != nil {
		return nil, wrap(ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrEventQueryFailed, err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (*StoredEvent, error) {
	var (
		ev   StoredEvent
		ms   int64
		meta sql.NullString
	)
	if err := rows.Scan(&ev.EventID, &ev.EventBuildID, &ev.EventType, &ms, &ev.EventPayload, &meta); err != nil {
		return nil, wrap(ErrEventQueryFailed, err)
	}
	ev.EventTimestamp = time.UnixMilli(ms)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &ev.EventMetadata); err != nil {
			return nil, wrap(ErrEventQueryFailed, err)
		}
	}
	return &ev, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
