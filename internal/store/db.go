package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// ErrReadOnly is returned by writes on an archive opened read-only.
var ErrReadOnly = errors.New("archive is open read-only")

// DB wraps the SQLite connection of the local transcript archive (pulse.db).
type DB struct {
	*sql.DB
	path     string
	readOnly bool
}

// Open opens the archive for reading and writing with WAL mode.
func Open(path string) (*DB, error) {
	return open(path, false)
}

// OpenReadOnly opens the archive without write access, for processes that
// do not hold the writer lease.
func OpenReadOnly(path string) (*DB, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*DB, error) {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_journal_mode", "WAL")
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{DB: db, path: path, readOnly: readOnly}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// ReadOnly reports whether writes are refused.
func (db *DB) ReadOnly() bool { return db.readOnly }

func (db *DB) writable() error {
	if db.readOnly {
		return ErrReadOnly
	}
	return nil
}
