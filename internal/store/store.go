package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal to version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order against journals whose user_version is below
// their version. schema.sql always describes version 0.
var migrations = []migration{
	{1, `CREATE INDEX IF NOT EXISTS idx_events_issuance ON events(instrument, issuance_id)`},
}

// journalPragmas configure every connection to a journal.
var journalPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is the durable action journal: one row per executed action and one
// per event it emitted.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at path (":memory:" for a private
// in-memory journal) and brings its schema up to date. Opening an existing
// journal is idempotent. A journal written by a newer schema is refused
// rather than read with missing columns.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range journalPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SchemaVersion returns the journal's schema version.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// CurrentSchemaVersion is the version Open upgrades journals to.
func CurrentSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate applies the base schema and every pending migration in one
// transaction, so a failed upgrade leaves the journal as it was.
func migrate(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current := CurrentSchemaVersion(); version > current {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, current)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		version = m.version
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}
