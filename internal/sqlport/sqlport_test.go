package sqlport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDB_ExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Execute(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT, archived INTEGER, score REAL)`)
	require.NoError(t, err)

	res, err := db.Execute(ctx, `INSERT INTO notes (title, archived, score) VALUES (?, ?, ?)`, "hello", 0, 3.5)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Changes)
	require.EqualValues(t, 1, res.LastInsertRowID)

	rows, err := db.Execute(ctx, `SELECT id, title, archived, score FROM notes`)
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)

	row := rows.Rows[0]
	require.EqualValues(t, 1, row["id"])
	require.Equal(t, "hello", row["title"])
	require.EqualValues(t, 0, row["archived"])
	require.EqualValues(t, 3.5, row["score"])
}

func TestDB_ExecuteNullValue(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Execute(ctx, `CREATE TABLE files (path TEXT, mime_type TEXT)`)
	require.NoError(t, err)

	_, err = db.Execute(ctx, `INSERT INTO files (path, mime_type) VALUES (?, ?)`, "a.jpg", nil)
	require.NoError(t, err)

	rows, err := db.Execute(ctx, `SELECT path, mime_type FROM files`)
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	require.Nil(t, rows.Rows[0]["mime_type"])
}

func TestDB_Transaction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Execute(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	_, err = db.Execute(ctx, `BEGIN`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)
	_, err = db.Execute(ctx, `ROLLBACK`)
	require.NoError(t, err)

	rows, err := db.Execute(ctx, `SELECT count(*) as c FROM t`)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows.Rows[0]["c"])
}
