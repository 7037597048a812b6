// Package snapshot implements the encode-side database adapter: it pulls
// schemas, indexes, and row data out of the database port into a
// model.Database value, and enumerates blobs via the files table.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kenneth/rbuvault/internal/model"
	"github.com/kenneth/rbuvault/internal/ports"
)

// excludedTables are system or migration-owned tables never captured in a
// snapshot.
var excludedTables = map[string]bool{
	"sqlite_sequence":      true,
	"sqlite_stat1":         true,
	"sqlite_stat4":         true,
	"__drizzle_migrations": true,
}

func isExcludedTable(name string) bool {
	if excludedTables[name] {
		return true
	}
	return strings.HasPrefix(name, "_")
}

// Tables enumerates user tables from sqlite_master: rows with type='table'
// and a non-null sql column, excluding the fixed exclusion set.
func Tables(ctx context.Context, db ports.Database) ([]model.Table, error) {
	res, err := db.Execute(ctx, `SELECT name, sql FROM sqlite_master WHERE type = 'table' AND sql IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: enumerating tables: %w", err)
	}

	var tables []model.Table
	for _, row := range res.Rows {
		name, _ := row["name"].(string)
		if isExcludedTable(name) {
			continue
		}
		sql, _ := row["sql"].(string)
		tables = append(tables, model.Table{Name: name, SQL: sql})
	}
	return tables, nil
}

// Indexes enumerates user-defined indexes from sqlite_master, excluding
// auto-generated indexes whose name begins with "sqlite_".
func Indexes(ctx context.Context, db ports.Database) ([]model.Index, error) {
	res, err := db.Execute(ctx, `SELECT name, tbl_name, sql FROM sqlite_master WHERE type = 'index' AND sql IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: enumerating indexes: %w", err)
	}

	var indexes []model.Index
	for _, row := range res.Rows {
		name, _ := row["name"].(string)
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		tableName, _ := row["tbl_name"].(string)
		sql, _ := row["sql"].(string)
		indexes = append(indexes, model.Index{Name: name, TableName: tableName, SQL: sql})
	}
	return indexes, nil
}

// DumpTable reads every row of table name into Row records. The port
// returns each row as a map, so columns are ordered by name, not by the
// table's declared column order.
func DumpTable(ctx context.Context, db ports.Database, name string) ([]model.Row, error) {
	res, err := db.Execute(ctx, fmt.Sprintf(`SELECT * FROM %q`, name))
	if err != nil {
		return nil, fmt.Errorf("snapshot: dumping table %q: %w", name, err)
	}

	rows := make([]model.Row, 0, len(res.Rows))
	for _, raw := range res.Rows {
		rows = append(rows, rowFromRaw(raw))
	}
	return rows, nil
}

func rowFromRaw(raw map[string]any) model.Row {
	columns := make([]string, 0, len(raw))
	for col := range raw {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	values := make([]model.Value, len(columns))
	for i, col := range columns {
		values[i] = valueFromAny(raw[col])
	}
	return model.NewRow(columns, values)
}

func valueFromAny(v any) model.Value {
	switch x := v.(type) {
	case nil:
		return model.Null()
	case int64:
		return model.Int64(x)
	case int:
		return model.Int64(int64(x))
	case float64:
		return model.Float64(x)
	case bool:
		return model.Bool(x)
	case string:
		return model.Text(x)
	case []byte:
		return model.BlobValue(x)
	default:
		return model.Text(fmt.Sprintf("%v", x))
	}
}

// Build assembles a full model.Database snapshot from the database port.
func Build(ctx context.Context, db ports.Database) (model.Database, error) {
	tables, err := Tables(ctx, db)
	if err != nil {
		return model.Database{}, err
	}
	indexes, err := Indexes(ctx, db)
	if err != nil {
		return model.Database{}, err
	}

	data := make(map[string][]model.Row, len(tables))
	for _, t := range tables {
		rows, err := DumpTable(ctx, db, t.Name)
		if err != nil {
			return model.Database{}, err
		}
		data[t.Name] = rows
	}

	return model.Database{Tables: tables, Indexes: indexes, Data: data}, nil
}

// EnumerateBlobs lists undeleted rows from the files table as blob
// references ready for the encoder to read via the blob-storage port.
func EnumerateBlobs(ctx context.Context, db ports.Database) ([]model.BlobRef, error) {
	res, err := db.Execute(ctx, `SELECT storage_path, mime_type, size FROM files WHERE deleted_at IS NULL ORDER BY storage_path`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: enumerating blobs: %w", err)
	}

	refs := make([]model.BlobRef, 0, len(res.Rows))
	for _, row := range res.Rows {
		path, _ := row["storage_path"].(string)
		mime, _ := row["mime_type"].(string)
		var size int64
		switch s := row["size"].(type) {
		case int64:
			size = s
		case int:
			size = int64(s)
		case float64:
			size = int64(s)
		}
		refs = append(refs, model.BlobRef{Path: path, MimeType: mime, Size: size})
	}
	return refs, nil
}
