// Package gzipcodec compresses chunk plaintext before encryption and
// decompresses it after decryption. The container format fixes gzip as the
// compression family; there is no negotiation and no alternative codec.
package gzipcodec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/kenneth/rbuvault/internal/containererr"
)

// Compress returns the gzip-compressed form of data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. A corrupt or truncated gzip stream is
// reported as containererr.Corrupt, since by the time this runs the GCM tag
// has already authenticated the bytes as coming from the holder of the key.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, containererr.Wrap(containererr.Corrupt, "invalid gzip stream", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, containererr.Wrap(containererr.Corrupt, "truncated gzip stream", err)
	}
	return out, nil
}
