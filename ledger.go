package npxl

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger remembers every conversion so unchanged files can be skipped and
// batch results reported later.
type Ledger struct {
	db *sql.DB
}

// Entry is the last recorded conversion of a file.
type Entry struct {
	Path    string
	SHA1    string
	Status  Status
	Width   int
	Height  int
	Rows    int
	Pixels  int
	Output  string
	Options string
	Error   string
	Updated time.Time
}

func NewLedger(file string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	// Workers record results concurrently, sqlite only has one writer
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS conversion (id INTEGER PRIMARY KEY NOT NULL, path TEXT NOT NULL UNIQUE, sha1 TEXT NOT NULL, status TEXT NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, rows INTEGER NOT NULL, pixels INTEGER NOT NULL, output TEXT NOT NULL, options TEXT NOT NULL DEFAULT '', error TEXT NOT NULL, updated INTEGER NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	// Ledgers created before options were recorded lack the column
	var n int
	if err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('conversion') WHERE name = 'options'").Scan(&n); err == nil && n == 0 {
		_, err = db.Exec("ALTER TABLE conversion ADD COLUMN options TEXT NOT NULL DEFAULT ''")
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{
		db: db,
	}, nil
}

// Files are always stored by absolute path
func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores the outcome of converting a file with the given checksum
// and conversion options, replacing anything already held for that file.
func (l *Ledger) Record(r Report, sum, options string) error {
	var msg string
	if r.Err != nil {
		msg = r.Err.Error()
	}
	h := r.Result.Header
	if _, err := l.db.Exec("INSERT OR REPLACE INTO conversion (path, sha1, status, width, height, rows, pixels, output, options, error, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", key(r.File), sum, string(r.Status), h.Width, h.Height, r.Result.Rows, r.Result.Pixels, r.Output, options, msg, time.Now().Unix()); err != nil {
		return err
	}
	return nil
}

type scanner interface {
	Scan(...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var status string
	var updated int64
	if err := s.Scan(&e.Path, &e.SHA1, &status, &e.Width, &e.Height, &e.Rows, &e.Pixels, &e.Output, &e.Options, &e.Error, &updated); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.Updated = time.Unix(updated, 0)
	return &e, nil
}

const entryColumns = "path, sha1, status, width, height, rows, pixels, output, options, error, updated"

// Lookup returns the entry for the given file or nil if there isn't one
func (l *Ledger) Lookup(path string) (*Entry, error) {
	e, err := scanEntry(l.db.QueryRow("SELECT "+entryColumns+" FROM conversion WHERE path = ?", key(path)))
	switch err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return e, nil
	default:
		return nil, err
	}
}

// Entries returns every entry ordered by path
func (l *Ledger) Entries() ([]Entry, error) {
	rows, err := l.db.Query("SELECT " + entryColumns + " FROM conversion ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
