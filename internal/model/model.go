// Package model defines the in-memory shapes carried across the container
// boundary: the manifest record, the database snapshot, row values, and the
// blob header.
package model

// Manifest describes when, where, and with what version a backup was
// produced. It is the sole payload of the type-0 chunk.
type Manifest struct {
	CreatedAt     string `json:"createdAt"`
	Platform      string `json:"platform"`
	AppVersion    string `json:"appVersion"`
	FormatVersion int    `json:"formatVersion"`
	BlobCount     int    `json:"blobCount"`
	BlobTotalSize int64  `json:"blobTotalSize"`
	InstanceName  string `json:"instanceName,omitempty"`
}

// Table describes one user table's schema, as recorded in sqlite_master.
type Table struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Index describes one user-defined index, as recorded in sqlite_master.
type Index struct {
	Name      string `json:"name"`
	TableName string `json:"tableName"`
	SQL       string `json:"sql"`
}

// Row is an ordered mapping from column name to Value. JSON rendering
// follows the order of Columns, and decoding keeps the order the JSON was
// written in, so a row round-trips with its column order intact. Rows built
// by snapshot.DumpTable list their columns in sorted name order, not the
// source table's declared order.
type Row struct {
	Columns []string
	Values  map[string]Value
}

// Database is the full snapshot carried by the type-1 chunk: every user
// table's schema, every user index, and every table's row data.
type Database struct {
	Tables  []Table          `json:"tables"`
	Indexes []Index          `json:"indexes"`
	Data    map[string][]Row `json:"data"`
}

// BlobHeader is the JSON object prefixing every blob chunk's raw bytes.
// PartIndex and TotalParts are absent (nil) for an unsplit blob.
type BlobHeader struct {
	Path       string `json:"path"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	PartIndex  *int   `json:"partIndex,omitempty"`
	TotalParts *int   `json:"totalParts,omitempty"`
}

// BlobRef describes a blob to be read from the blob-storage port during
// encoding, before its bytes are loaded.
type BlobRef struct {
	Path     string
	MimeType string
	Size     int64
}

// Blob is a fully reassembled blob produced by decoding.
type Blob struct {
	Path     string
	MimeType string
	Size     int64
	Data     []byte
}
