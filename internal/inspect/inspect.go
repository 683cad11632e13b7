// Package inspect maintains a read-only SQLite mirror of a space's primary
// index for ad-hoc diagnostic queries, modeled on the reference
// implementation's internal/store SQLite-backed derived index (sql.go):
// an in-memory (or file-backed) database, opened with the same
// busy_timeout/WAL/synchronous pragma batch, rebuilt wholesale rather than
// incrementally maintained in lockstep with every mutation.
package inspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" //nolint:blank-imports // registers the "sqlite3" driver
)

const schemaVersion = 1

// Mirror is a disposable SQLite snapshot of a space's tuples, for
// inspection with arbitrary SQL rather than the engine's own key-only
// lookups. It is never consulted by DML — the engine only writes to it,
// from Space.RebuildInspectMirror — so it cannot affect space.go's
// correctness, only observe it.
type Mirror struct {
	db *sql.DB
}

// TupleRow is one decoded tuple as mirrored into SQLite.
type TupleRow struct {
	PrimaryKey string
	FieldCount int
	Bsize      int
	JSON       string
}

// Open creates a Mirror backed by path (":memory:" for a private,
// process-local mirror), applying the same pragma batch the reference
// implementation's openSqlite uses.
func Open(ctx context.Context, path string) (*Mirror, error) {
	if path == "" {
		return nil, errors.New("inspect: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("inspect: open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("inspect: ping sqlite: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("inspect: set user_version: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Mirror{db: db}, nil
}

const busyTimeoutMillis = 5000

func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
	`, busyTimeoutMillis))
	if err != nil {
		return fmt.Errorf("inspect: apply pragmas: %w", err)
	}

	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tuples (
			primary_key  TEXT PRIMARY KEY,
			field_count  INTEGER NOT NULL,
			bsize        INTEGER NOT NULL,
			fields_json  TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("inspect: create schema: %w", err)
	}

	return nil
}

// Rebuild discards the current mirror contents and repopulates tuples from
// rows, within a single transaction (mirroring dropAndRecreateSchema's
// drop-then-bulk-insert shape).
func (m *Mirror) Rebuild(ctx context.Context, rows []TupleRow) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inspect: begin tx: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tuples"); err != nil {
		return fmt.Errorf("inspect: clear tuples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tuples (primary_key, field_count, bsize, fields_json)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("inspect: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.PrimaryKey, row.FieldCount, row.Bsize, row.JSON); err != nil {
			return fmt.Errorf("inspect: insert tuple %q: %w", row.PrimaryKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inspect: commit: %w", err)
	}

	committed = true

	return nil
}

// Query runs an arbitrary read-only SQL statement against the mirror and
// returns every matched row's column values, in column order.
func (m *Mirror) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inspect: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("inspect: columns: %w", err)
	}

	var out [][]any

	for rows.Next() {
		dest := make([]any, len(cols))
		destPtrs := make([]any, len(cols))

		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, fmt.Errorf("inspect: scan: %w", err)
		}

		out = append(out, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspect: rows: %w", err)
	}

	return out, nil
}

// Count returns the number of mirrored tuples.
func (m *Mirror) Count(ctx context.Context) (int, error) {
	var n int

	row := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tuples")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("inspect: count: %w", err)
	}

	return n, nil
}

// Close releases the underlying SQLite connection.
func (m *Mirror) Close() error {
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("inspect: close: %w", err)
	}

	return nil
}
