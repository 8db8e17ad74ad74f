// Package store persists frame metadata to SQLite.
//
// A *Store is an explicit handle; callers thread it through rather than
// sharing a package-level connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/justapithecus/aetheric/types"
)

// DefaultPath is the database location used when none is configured.
const DefaultPath = "./sqlite-db/ae.db"

// Table names.
const (
	TableSessions  = "sessions"
	TableASCII     = "msgascii"
	TableBinary    = "msgbinary"
	TableDiscarded = "msgdiscarded"
)

// ErrMissingTables is returned by RequireTables when the schema is absent.
var ErrMissingTables = errors.New("store: missing required tables")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	remote        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT,
	outcome       TEXT,
	ascii_count   INTEGER NOT NULL DEFAULT 0,
	binary_count  INTEGER NOT NULL DEFAULT 0,
	discard_count INTEGER NOT NULL DEFAULT 0,
	bytes_spooled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS msgascii (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	payload     TEXT NOT NULL,
	payload_len INTEGER NOT NULL,
	session_id  TEXT NOT NULL,
	inserted_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS msgbinary (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	payload_path TEXT NOT NULL,
	payload_len  INTEGER NOT NULL,
	checksum     TEXT,
	session_id   TEXT NOT NULL,
	inserted_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS msgdiscarded (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	payload_preview   BLOB NOT NULL,
	payload_type      TEXT NOT NULL,
	payload_total_len INTEGER NOT NULL,
	discard_reason    TEXT NOT NULL,
	session_id        TEXT NOT NULL,
	inserted_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_msgascii_session ON msgascii(session_id);
CREATE INDEX IF NOT EXISTS idx_msgbinary_session ON msgbinary(session_id);
CREATE INDEX IF NOT EXISTS idx_msgdiscarded_session ON msgdiscarded(session_id);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Store is a handle to the metadata database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies
// migrations. The parent directory is created.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenReadOnly opens an existing database without migrating it.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records a new session.
func (s *Store) StartSession(ctx context.Context, sessionID, remote string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, remote, started_at) VALUES (?, ?, ?)`,
		sessionID, remote, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: start session %s: %w", sessionID, err)
	}
	return nil
}

// SessionEnd carries the final counters of a session.
type SessionEnd struct {
	EndedAt      time.Time
	Outcome      string
	ASCII        int64
	Binary       int64
	Discarded    int64
	BytesSpooled int64
}

// EndSession finalizes a session row.
func (s *Store) EndSession(ctx context.Context, sessionID string, end SessionEnd) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		    SET ended_at = ?, outcome = ?, ascii_count = ?, binary_count = ?,
		        discard_count = ?, bytes_spooled = ?
		  WHERE session_id = ?`,
		end.EndedAt.UTC().Format(time.RFC3339Nano), end.Outcome,
		end.ASCII, end.Binary, end.Discarded, end.BytesSpooled, sessionID)
	if err != nil {
		return fmt.Errorf("store: end session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: end session %s: %w", sessionID, sql.ErrNoRows)
	}
	return nil
}

// InsertASCII records a valid ASCII frame and returns its row id.
func (s *Store) InsertASCII(ctx context.Context, sessionID string, f types.ASCIIFrame) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO msgascii (payload, payload_len, session_id) VALUES (?, ?, ?)`,
		f.Text, len(f.Text), sessionID)
	if err != nil {
		return 0, fmt.Errorf("store: insert ascii: %w", err)
	}
	return res.LastInsertId()
}

// InsertBinary records a committed binary frame and returns its row id.
func (s *Store) InsertBinary(ctx context.Context, sessionID string, f types.BinaryFrame) (int64, error) {
	var checksum any
	if f.ChecksumHex != "" {
		checksum = f.ChecksumHex
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO msgbinary (payload_path, payload_len, checksum, session_id) VALUES (?, ?, ?, ?)`,
		f.FinalPath, int64(f.Size), checksum, sessionID)
	if err != nil {
		return 0, fmt.Errorf("store: insert binary: %w", err)
	}
	return res.LastInsertId()
}

// InsertDiscard records a discard event.
func (s *Store) InsertDiscard(ctx context.Context, sessionID string, ev types.DiscardEvent) error {
	preview := ev.Preview
	if preview == nil {
		preview = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO msgdiscarded (payload_preview, payload_type, payload_total_len, discard_reason, session_id)
		 VALUES (?, ?, ?, ?, ?)`,
		preview, string(ev.Kind), int64(ev.DeclaredLength), ev.Reason, sessionID)
	if err != nil {
		return fmt.Errorf("store: insert discard: %w", err)
	}
	return nil
}

// HasTable reports whether a table exists.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	var got string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: has table %s: %w", name, err)
	}
	return true, nil
}

// RequireTables returns ErrMissingTables naming any absent message tables.
func (s *Store) RequireTables(ctx context.Context) error {
	var missing []string
	for _, name := range []string{TableASCII, TableBinary} {
		ok, err := s.HasTable(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingTables, missing)
	}
	return nil
}
