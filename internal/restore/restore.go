// Package restore implements the decode-side restore adapter: starting from
// an instance whose schema is already applied, it drives foreign-key-disabled
// batched data restoration and blob restoration, tracking a fixed state
// machine. It does not check the schema itself.
package restore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/model"
	"github.com/kenneth/rbuvault/internal/ports"
)

// State names one step of a restore operation. Transitions only move
// forward; on failure the instance is left in whatever state it reached,
// never rolled back or deleted.
type State int

const (
	Start State = iota
	Decoded
	InstanceCreated
	SchemaReady
	DataRestored
	BlobsRestored
	Done
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case Decoded:
		return "decoded"
	case InstanceCreated:
		return "instance_created"
	case SchemaReady:
		return "schema_ready"
	case DataRestored:
		return "data_restored"
	case BlobsRestored:
		return "blobs_restored"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// maxBoundParams is the historical SQLite bound-parameter limit; a batched
// insert statement must keep columns*rowsPerBatch at or under it.
const maxBoundParams = 999

// skippedTables are restored by the external migration runner, not by this
// adapter.
var skippedTables = map[string]bool{
	"schema_migrations": true,
}

// Input is everything the restore adapter needs once decoding and instance
// creation have already happened.
type Input struct {
	Database model.Database
	Blobs    []model.Blob
}

// Restorer drives one restore operation against a database port and a
// blob-storage port, both owned by an already-created instance.
type Restorer struct {
	DB     ports.Database
	Blobs  ports.BlobStore
	Logger *logrus.Logger

	state State
}

// NewRestorer returns a Restorer bound to an instance that has already
// transitioned through InstanceCreated and SchemaReady (the migration
// runner's responsibility, not this package's).
func NewRestorer(db ports.Database, blobs ports.BlobStore, logger *logrus.Logger) *Restorer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Restorer{DB: db, Blobs: blobs, Logger: logger, state: SchemaReady}
}

// State returns the restorer's current state.
func (r *Restorer) State() State { return r.state }

// Run drives DataRestored, BlobsRestored, then Done.
func (r *Restorer) Run(ctx context.Context, in Input) error {
	if r.state != SchemaReady {
		return fmt.Errorf("restore: Run called from state %s, want %s", r.state, SchemaReady)
	}

	if err := r.restoreData(ctx, in.Database); err != nil {
		return err
	}
	r.state = DataRestored

	if err := r.restoreBlobs(ctx, in.Blobs); err != nil {
		return err
	}
	r.state = BlobsRestored

	r.state = Done
	return nil
}

func (r *Restorer) restoreData(ctx context.Context, db model.Database) error {
	if _, err := r.DB.Execute(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return containererr.Wrap(containererr.IoError, "disabling foreign keys", err)
	}
	defer func() {
		if _, err := r.DB.Execute(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			r.Logger.WithError(err).Warn("restore: failed to re-enable foreign keys")
		}
	}()

	for _, table := range db.Tables {
		if skippedTables[table.Name] {
			continue
		}
		rows := db.Data[table.Name]
		if len(rows) == 0 {
			continue
		}
		if err := r.restoreTableRows(ctx, table.Name, rows); err != nil {
			return err
		}
	}
	return nil
}

func (r *Restorer) restoreTableRows(ctx context.Context, table string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	columns := rows[0].Columns
	if len(columns) == 0 {
		return nil
	}

	rowsPerBatch := maxBoundParams / len(columns)
	if rowsPerBatch < 1 {
		rowsPerBatch = 1
	}

	for start := 0; start < len(rows); start += rowsPerBatch {
		end := start + rowsPerBatch
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		sql, params := buildBatchInsert(table, columns, batch)
		if _, err := r.DB.Execute(ctx, sql, params...); err != nil {
			r.Logger.WithFields(logrus.Fields{"table": table, "batch_start": start, "batch_size": len(batch)}).
				WithError(err).Warn("restore: batch insert failed, falling back to per-row inserts")
			r.restoreRowsIndividually(ctx, table, columns, batch)
		}
	}
	return nil
}

func (r *Restorer) restoreRowsIndividually(ctx context.Context, table string, columns []string, rows []model.Row) {
	for _, row := range rows {
		sql, params := buildBatchInsert(table, columns, []model.Row{row})
		if _, err := r.DB.Execute(ctx, sql, params...); err != nil {
			r.Logger.WithFields(logrus.Fields{"table": table}).WithError(err).
				Warn("restore: per-row insert failed, skipping row")
		}
	}
}

func buildBatchInsert(table string, columns []string, rows []model.Row) (string, []any) {
	colList := ""
	for i, c := range columns {
		if i > 0 {
			colList += ", "
		}
		colList += fmt.Sprintf("%q", c)
	}

	valueGroups := ""
	params := make([]any, 0, len(columns)*len(rows))
	for ri, row := range rows {
		if ri > 0 {
			valueGroups += ", "
		}
		valueGroups += "("
		for ci, col := range columns {
			if ci > 0 {
				valueGroups += ", "
			}
			valueGroups += "?"
			params = append(params, normalize(row.Get(col)))
		}
		valueGroups += ")"
	}

	sql := fmt.Sprintf("INSERT INTO %q (%s) VALUES %s", table, colList, valueGroups)
	return sql, params
}

// normalize converts a decoded Value to the form bound into the database
// port: null/undefined -> nil, booleans -> 0/1, everything else passes
// through as its native Go type.
func normalize(v model.Value) any {
	switch v.Kind {
	case model.KindNull:
		return nil
	case model.KindBool:
		if v.Bool {
			return int64(1)
		}
		return int64(0)
	case model.KindInt64:
		return v.Int
	case model.KindFloat64:
		return v.Float
	case model.KindText:
		return v.Text
	case model.KindBlob:
		return v.Blob
	default:
		return nil
	}
}

func (r *Restorer) restoreBlobs(ctx context.Context, blobs []model.Blob) error {
	for _, blob := range blobs {
		path := stripEncSuffix(blob.Path)
		if err := r.Blobs.Store(ctx, path, blob.Data); err != nil {
			return containererr.Wrap(containererr.IoError, fmt.Sprintf("storing blob %q", path), err)
		}
	}
	return nil
}

func stripEncSuffix(path string) string {
	const suffix = ".enc"
	if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path
}
