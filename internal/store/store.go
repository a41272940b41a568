// Package store provides SQLite-backed persistence for the widget host.
//
// One database holds widget placement records, permission decisions, global
// settings and the per-widget key/value namespace behind the storage
// capability. Every method classifies driver failures as StorageError.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
)

// Store provides access to the host SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
// The special path ":memory:" opens a private in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := "file::memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errs.Wrap(errs.KindStorageError, err, "create db directory")
		}
		dsn = "file:" + dbPath
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, err, "open db")
	}

	// SQLite allows one writer; a single connection also keeps :memory: shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStorageError, err, "migrate")
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.KindStorageError, err, "ping")
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS widget_state (
		instance_id TEXT PRIMARY KEY,
		widget_id TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		is_running INTEGER NOT NULL DEFAULT 0,
		last_active INTEGER NOT NULL,
		permissions TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS grants (
		widget_id TEXT NOT NULL,
		permission TEXT NOT NULL,
		granted INTEGER NOT NULL,
		decided_at INTEGER NOT NULL,
		PRIMARY KEY (widget_id, permission)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS widget_kv (
		widget_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (widget_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_widget_state_widget ON widget_state(widget_id, last_active);
	CREATE INDEX IF NOT EXISTS idx_widget_state_running ON widget_state(is_running);
	`
	_, err := s.db.Exec(schema)
	return err
}

func storageErr(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.KindStorageError, err, format, args...)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(format string, args ...interface{}) error {
	return errs.New(errs.KindNotFound, format, args...)
}
