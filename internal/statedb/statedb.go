package statedb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

// DB is the published state store: named tables of entity rows, each row
// a set of independently written string fields. Field writes are
// idempotent and carry no transactional guarantees across entities.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the state store at path. The special path
// ":memory:" yields an ephemeral store for tests.
func Open(path string) (*DB, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
			return nil, errFactory.Wrap(ErrStorageInit, err)
		}
		path += "?_journal=WAL&_auto_vacuum=2"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()

		return nil, err
	}

	logger.Debug().Str("path", path).Msg("State store opened")

	return &DB{db: db}, nil
}

// SetField writes one field of one entity row, inserting or replacing.
func (s *DB) SetField(ctx context.Context, table, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (tbl, key, field, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(tbl, key, field) DO UPDATE SET value = excluded.value`,
		table, key, field, value)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// SetFields writes a batch of fields for one entity row in a single
// transaction so the row is internally consistent by the end of a cycle.
func (s *DB) SetFields(ctx context.Context, table, key string, fields map[string]string) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO state (tbl, key, field, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(tbl, key, field) DO UPDATE SET value = excluded.value`)
	if err != nil {
		tx.Rollback()

		return errFactory.Wrap(ErrStorageAccess, err)
	}
	defer stmt.Close()

	for field, value := range fields {
		if _, err := stmt.ExecContext(ctx, table, key, field, value); err != nil {
			tx.Rollback()

			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

// GetField reads one field; the second return is false when the field is
// not present.
func (s *DB) GetField(ctx context.Context, table, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state WHERE tbl = ? AND key = ? AND field = ?`,
		table, key, field).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, errors.New().Wrap(ErrStorageAccess, err)
	}

	return value, true, nil
}

// GetAll reads every field of one entity row.
func (s *DB) GetAll(ctx context.Context, table, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value FROM state WHERE tbl = ? AND key = ?`, table, key)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return fields, nil
}

// Keys lists the entity keys currently published in a table.
func (s *DB) Keys(ctx context.Context, table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT key FROM state WHERE tbl = ? ORDER BY key`, table)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return keys, nil
}

// DeleteField removes one field so stale entities disappear from the
// report instead of lingering as zeros.
func (s *DB) DeleteField(ctx context.Context, table, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM state WHERE tbl = ? AND key = ? AND field = ?`,
		table, key, field)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// DeleteKey removes an entire entity row.
func (s *DB) DeleteKey(ctx context.Context, table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM state WHERE tbl = ? AND key = ?`, table, key)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// Close closes the underlying store.
func (s *DB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}
