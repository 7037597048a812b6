// Package sqlport implements ports.Database over database/sql using
// modernc.org/sqlite, the pure-Go, cgo-free SQLite driver also carried by
// the retrieval pack's iconidentify-xgrabba repo. It is the CLI's default
// database port; the snapshot/restore tests use in-memory fakes instead.
package sqlport

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/ports"
)

// DB is a ports.Database backed by a single *sql.DB connection. The port
// is assumed single-session, so Open disables SQLite's connection pool by
// capping MaxOpenConns at 1 — this also keeps the restore adapter's
// BEGIN/COMMIT/ROLLBACK-over-Execute transaction model correct, since a
// transaction started on one connection must be used on that same
// connection.
type DB struct {
	sql *sql.DB
}

// Open opens (and creates, if absent) a SQLite database file at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, containererr.Wrap(containererr.IoError, fmt.Sprintf("opening sqlite database %q", path), err)
	}
	conn.SetMaxOpenConns(1)
	return &DB{sql: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Execute runs sql against the database, returning every result row as a
// map of column name to value. INSERT/UPDATE/DELETE/PRAGMA statements with
// no result set return an empty Rows slice plus Changes/LastInsertRowID.
func (d *DB) Execute(ctx context.Context, query string, params ...any) (ports.Result, error) {
	rows, err := d.sql.QueryContext(ctx, query, params...)
	if err != nil {
		return d.execNonQuery(ctx, query, params...)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ports.Result{}, containererr.Wrap(containererr.IoError, "reading column names", err)
	}

	var result ports.Result
	if len(cols) == 0 {
		// The statement already ran with no result set; read its counts on
		// the same (single) connection once it is released.
		rows.Close()
		if err := d.sql.QueryRowContext(ctx, `SELECT changes(), last_insert_rowid()`).Scan(&result.Changes, &result.LastInsertRowID); err != nil {
			return ports.Result{}, containererr.Wrap(containererr.IoError, "reading change counts", err)
		}
		return result, nil
	}
	for rows.Next() {
		values := make([]any, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ports.Result{}, containererr.Wrap(containererr.IoError, "scanning row", err)
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = values[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return ports.Result{}, containererr.Wrap(containererr.IoError, "iterating rows", err)
	}
	return result, nil
}

// execNonQuery handles statements that QueryContext rejects outright
// (some drivers refuse PRAGMA/DDL/DML via Query), falling back to Exec.
func (d *DB) execNonQuery(ctx context.Context, query string, params ...any) (ports.Result, error) {
	res, err := d.sql.ExecContext(ctx, query, params...)
	if err != nil {
		return ports.Result{}, containererr.Wrap(containererr.IoError, fmt.Sprintf("executing %q", query), err)
	}
	changes, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return ports.Result{Changes: changes, LastInsertRowID: lastID}, nil
}
