package snapshot

import (
	"context"
	"testing"

	"github.com/kenneth/rbuvault/internal/ports"
)

type fakeDB struct {
	responses map[string]ports.Result
}

func (f *fakeDB) Execute(ctx context.Context, sql string, params ...any) (ports.Result, error) {
	if res, ok := f.responses[sql]; ok {
		return res, nil
	}
	return ports.Result{}, nil
}

func TestTablesExcludesSystemAndUnderscoreTables(t *testing.T) {
	db := &fakeDB{responses: map[string]ports.Result{
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND sql IS NOT NULL ORDER BY name`: {
			Rows: []map[string]any{
				{"name": "users", "sql": "CREATE TABLE users (id INTEGER PRIMARY KEY)"},
				{"name": "sqlite_sequence", "sql": "CREATE TABLE sqlite_sequence(name,seq)"},
				{"name": "_internal", "sql": "CREATE TABLE _internal (x)"},
				{"name": "__drizzle_migrations", "sql": "CREATE TABLE __drizzle_migrations (id)"},
			},
		},
	}}

	tables, err := Tables(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 || tables[0].Name != "users" {
		t.Fatalf("expected only users table, got %+v", tables)
	}
}

func TestIndexesExcludesAutoGenerated(t *testing.T) {
	db := &fakeDB{responses: map[string]ports.Result{
		`SELECT name, tbl_name, sql FROM sqlite_master WHERE type = 'index' AND sql IS NOT NULL ORDER BY name`: {
			Rows: []map[string]any{
				{"name": "idx_users_email", "tbl_name": "users", "sql": "CREATE INDEX idx_users_email ON users(email)"},
				{"name": "sqlite_autoindex_users_1", "tbl_name": "users", "sql": "CREATE INDEX sqlite_autoindex_users_1"},
			},
		},
	}}

	indexes, err := Indexes(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if len(indexes) != 1 || indexes[0].Name != "idx_users_email" {
		t.Fatalf("expected only idx_users_email, got %+v", indexes)
	}
}

func TestDumpTablePreservesValues(t *testing.T) {
	db := &fakeDB{responses: map[string]ports.Result{
		`SELECT * FROM "users"`: {
			Rows: []map[string]any{
				{"id": int64(1), "name": "ada", "active": true, "note": nil},
			},
		},
	}}

	rows, err := DumpTable(context.Background(), db, "users")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Get("id").Int != 1 {
		t.Fatalf("id mismatch: %+v", rows[0].Get("id"))
	}
	if !rows[0].Get("active").Bool {
		t.Fatalf("active mismatch: %+v", rows[0].Get("active"))
	}
	if !rows[0].Get("note").IsNull() {
		t.Fatalf("note should be null: %+v", rows[0].Get("note"))
	}
}

func TestEnumerateBlobsFiltersDeleted(t *testing.T) {
	db := &fakeDB{responses: map[string]ports.Result{
		`SELECT storage_path, mime_type, size FROM files WHERE deleted_at IS NULL ORDER BY storage_path`: {
			Rows: []map[string]any{
				{"storage_path": "a.txt", "mime_type": "text/plain", "size": int64(10)},
			},
		},
	}}

	refs, err := EnumerateBlobs(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].Path != "a.txt" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
}
