package gate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore keeps the set in a single-column SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "ids.db"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrCorrupt, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS known_ids (
		id INTEGER PRIMARY KEY
	)`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: create known_ids table: %w", ErrCorrupt, err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Load selects every stored identifier.
func (s *SQLiteStore) Load(ctx context.Context) (Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM known_ids`)
	if err != nil {
		return nil, fmt.Errorf("%w: select known_ids: %w", ErrCorrupt, err)
	}
	defer func() { _ = rows.Close() }()

	set := NewSet()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrCorrupt, err)
		}

		set.Add(id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return set, nil
}

// Save replaces the table contents inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, set Set) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM known_ids`); err != nil {
		return fmt.Errorf("clear known_ids: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO known_ids (id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range set.Sorted() {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("insert %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
