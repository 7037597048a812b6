package restore

import (
	"context"
	"fmt"
	"testing"

	"github.com/kenneth/rbuvault/internal/model"
	"github.com/kenneth/rbuvault/internal/ports"
)

type fakeDB struct {
	executed     []string
	failOnSQL    map[string]bool
	failContains string
}

func (f *fakeDB) Execute(ctx context.Context, sql string, params ...any) (ports.Result, error) {
	f.executed = append(f.executed, sql)
	if f.failContains != "" && containsAll(sql, f.failContains) {
		return ports.Result{}, fmt.Errorf("simulated failure")
	}
	return ports.Result{Changes: 1}, nil
}

func containsAll(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

type fakeBlobStore struct {
	stored map[string][]byte
}

func (f *fakeBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.stored[path]
	return ok, nil
}

func (f *fakeBlobStore) Retrieve(ctx context.Context, path string) ([]byte, error) {
	return f.stored[path], nil
}

func (f *fakeBlobStore) Store(ctx context.Context, path string, data []byte) error {
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	f.stored[path] = data
	return nil
}

func TestRestoreDataAndBlobs(t *testing.T) {
	db := &fakeDB{}
	blobs := &fakeBlobStore{}
	r := NewRestorer(db, blobs, nil)

	in := Input{
		Database: model.Database{
			Tables: []model.Table{{Name: "users", SQL: "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"}},
			Data: map[string][]model.Row{
				"users": {
					model.NewRow([]string{"id", "name"}, []model.Value{model.Int64(1), model.Text("ada")}),
				},
			},
		},
		Blobs: []model.Blob{
			{Path: "avatar.png.enc", MimeType: "image/png", Data: []byte("pngdata")},
		},
	}

	if err := r.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State() != Done {
		t.Fatalf("expected Done, got %v", r.State())
	}

	if string(blobs.stored["avatar.png"]) != "pngdata" {
		t.Fatalf("expected .enc suffix stripped, got keys: %+v", blobs.stored)
	}
}

func TestRestoreSkipsSchemaMigrations(t *testing.T) {
	db := &fakeDB{}
	blobs := &fakeBlobStore{}
	r := NewRestorer(db, blobs, nil)

	in := Input{
		Database: model.Database{
			Tables: []model.Table{{Name: "schema_migrations"}},
			Data: map[string][]model.Row{
				"schema_migrations": {model.NewRow([]string{"version"}, []model.Value{model.Int64(1)})},
			},
		},
	}

	if err := r.Run(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	for _, sql := range db.executed {
		if containsAll(sql, "schema_migrations") {
			t.Fatalf("should never insert into schema_migrations, got: %s", sql)
		}
	}
}

func TestRestoreFallsBackToPerRowOnBatchFailure(t *testing.T) {
	db := &fakeDB{failContains: "INSERT INTO \"users\""}
	blobs := &fakeBlobStore{}
	r := NewRestorer(db, blobs, nil)

	in := Input{
		Database: model.Database{
			Tables: []model.Table{{Name: "users"}},
			Data: map[string][]model.Row{
				"users": {
					model.NewRow([]string{"id"}, []model.Value{model.Int64(1)}),
					model.NewRow([]string{"id"}, []model.Value{model.Int64(2)}),
				},
			},
		},
	}

	// Even though every insert fails in this fake, Run must not abort: the
	// per-row fallback logs and continues rather than returning an error.
	if err := r.Run(context.Background(), in); err != nil {
		t.Fatalf("Run should not fail on per-row insert errors: %v", err)
	}
	if r.State() != Done {
		t.Fatalf("expected Done despite row failures, got %v", r.State())
	}
}

func TestStripEncSuffix(t *testing.T) {
	if got := stripEncSuffix("file.bin.enc"); got != "file.bin" {
		t.Fatalf("got %q", got)
	}
	if got := stripEncSuffix("file.bin"); got != "file.bin" {
		t.Fatalf("got %q", got)
	}
}
