// Package containererr defines the error taxonomy shared by the encoder,
// decoder, and restore adapters for the backup container format.
package containererr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the fixed error categories a conforming
// implementation must distinguish. Values are conceptual, not wire bytes.
type Kind string

const (
	// InvalidContainer covers missing/wrong magic, malformed framing,
	// a duplicate manifest, or a missing required chunk.
	InvalidContainer Kind = "invalid_container"
	// UnsupportedVersion is returned when the header version exceeds the
	// maximum this build understands.
	UnsupportedVersion Kind = "unsupported_version"
	// Truncated covers EOF inside a chunk header or payload.
	Truncated Kind = "truncated"
	// InvalidPassword is returned when the first chunk fails GCM
	// authentication, which is the only chunk whose failure can be
	// blamed on the password rather than on corruption.
	InvalidPassword Kind = "invalid_password"
	// Corrupt is returned when a later chunk fails GCM authentication or
	// decompression, after the key has already been shown to work.
	Corrupt Kind = "corrupt"
	// IncompleteSplitBlob is returned when end-of-file is reached with
	// outstanding blob reassembly state.
	IncompleteSplitBlob Kind = "incomplete_split_blob"
	// DecodeSchema covers manifest/database/blob-header JSON that fails
	// structural validation.
	DecodeSchema Kind = "decode_schema"
	// IoError wraps a failure from the database or blob-storage port.
	IoError Kind = "io_error"
	// Cancelled is returned when an operation is cooperatively cancelled
	// via its context.
	Cancelled Kind = "cancelled"
)

// Error is the concrete error type returned across package boundaries. It
// carries the taxonomy Kind plus, where useful, the offending paths.
type Error struct {
	Kind  Kind
	Msg   string
	Paths []string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on Kind alone, so callers can do
// errors.Is(err, containererr.New(containererr.InvalidPassword, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an Error of the given kind, wrapping a lower-level cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithPaths attaches offending paths (used by IncompleteSplitBlob).
func (e *Error) WithPaths(paths []string) *Error {
	e.Paths = paths
	return e
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
