package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version.
//
//	1 - events and actions tables
const schemaVersion = 1

// Store is the durable event log and action journal.
//
// It is safe for concurrent use. All access goes through a single
// connection, so writes from the orchestrator's workers are serialized by
// database/sql rather than failing with SQLITE_BUSY.
type Store struct {
	db *sql.DB
}

// pragma is a connection setting applied on open. want is the value read
// back afterwards; an empty want skips the check.
type pragma struct {
	name  string
	value string
	want  string
}

// filePragmas are applied to on-disk databases. In-memory databases
// cannot use WAL, so they only get the timeout.
var filePragmas = []pragma{
	{name: "journal_mode", value: "WAL", want: "wal"},
	{name: "synchronous", value: "NORMAL", want: "1"},
	{name: "busy_timeout", value: "5000", want: "5000"},
}

var memoryPragmas = []pragma{
	{name: "busy_timeout", value: "5000", want: "5000"},
}

// Open opens the database at path, creating it if needed, and brings the
// schema up to date. Opening an existing database is a no-op apart from
// the version check.
//
// path may be ":memory:" for a private in-memory database; it lives as
// long as the Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One connection: an in-memory database is per-connection, and a
	// single writer is all SQLite allows anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database %s: %w", path, err)
	}

	s := &Store{db: db}
	pragmas := filePragmas
	if isMemory(path) {
		pragmas = memoryPragmas
	}
	if err := s.configure(pragmas); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (s *Store) configure(pragmas []pragma) error {
	for _, p := range pragmas {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set pragma %s: %w", p.name, err)
		}
		if p.want == "" {
			continue
		}
		if err := s.verifyPragma(p.name, p.want); err != nil {
			return err
		}
	}
	return nil
}

// migrate applies the schema and stamps the version. It refuses a
// database written by a newer schema rather than guessing at its layout.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d",
			version, schemaVersion)
	}

	// The schema is all CREATE ... IF NOT EXISTS, so reapplying it to a
	// current database changes nothing.
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if version < schemaVersion {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("stamp schema version: %w", err)
		}
	}
	return nil
}

// verifyPragma reads a pragma back and compares it to want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, want)
	}
	return nil
}
