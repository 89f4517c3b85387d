package services

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements negotiation.Store on a local SQLite file.
type SQLiteStore struct {
	sqlStore
}

var sqliteQueries = sqlQueries{
	insert: `INSERT INTO negotiations (id, address, record) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
	load:   `SELECT record FROM negotiations WHERE id = ?`,
	update: `UPDATE negotiations SET record = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS negotiations (
	id INTEGER PRIMARY KEY,
	address BLOB NOT NULL UNIQUE,
	record BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenSQLiteStore creates or opens the database at path.
//
// The database runs in WAL mode with a single connection, since SQLite
// allows one writer at a time.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{sqlStore{db: db, q: sqliteQueries}}, nil
}
