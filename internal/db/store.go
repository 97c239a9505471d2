// Package db owns the durable side of an inspection session: the
// per-session SQLite store, the rolling CSV mirror, the background
// log worker that feeds both, and the read-only summary exporter.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps one per-session SQLite database.
type Store struct {
	*sql.DB
	Path string
}

// OpenStore opens (creating if necessary) the SQLite database at path
// and brings its schema up to date. Schema creation is idempotent.
func OpenStore(path string) (*Store, error) {
	sqdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	// The store is owned by a single writer; a second connection
	// would only invite lock contention.
	sqdb.SetMaxOpenConns(1)

	s := &Store{DB: sqdb, Path: path}
	if err := s.migrate(); err != nil {
		sqdb.Close()
		return nil, err
	}
	return s, nil
}
