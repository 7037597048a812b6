// Package blobseg splits large blobs into size-bounded parts on encode and
// reassembles them on decode.
package blobseg

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kenneth/rbuvault/internal/model"
)

// MaxPartSize is the maximum number of raw bytes carried by one blob part.
const MaxPartSize = 10 * 1024 * 1024

// PartCount returns the number of type-2 chunks a blob of the given size
// would produce.
func PartCount(size int64) int {
	if size <= MaxPartSize {
		return 1
	}
	n := size / MaxPartSize
	if size%MaxPartSize != 0 {
		n++
	}
	return int(n)
}

// BuildPlaintexts renders ref's data as one or more blob-chunk plaintexts,
// each a JSON blob header, a single 0x00 separator, and raw part bytes, in
// ascending partIndex order.
func BuildPlaintexts(ref model.BlobRef, data []byte) ([][]byte, error) {
	total := PartCount(int64(len(data)))

	if total == 1 {
		header := model.BlobHeader{Path: ref.Path, MimeType: ref.MimeType, Size: int64(len(data))}
		pt, err := buildPlaintext(header, data)
		if err != nil {
			return nil, err
		}
		return [][]byte{pt}, nil
	}

	plaintexts := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxPartSize
		end := start + MaxPartSize
		if end > len(data) {
			end = len(data)
		}

		idx, tp := i, total
		header := model.BlobHeader{
			Path:       ref.Path,
			MimeType:   ref.MimeType,
			Size:       int64(len(data)),
			PartIndex:  &idx,
			TotalParts: &tp,
		}
		pt, err := buildPlaintext(header, data[start:end])
		if err != nil {
			return nil, err
		}
		plaintexts = append(plaintexts, pt)
	}
	return plaintexts, nil
}

func buildPlaintext(header model.BlobHeader, part []byte) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("blobseg: marshaling blob header: %w", err)
	}

	buf := make([]byte, 0, len(headerJSON)+1+len(part))
	buf = append(buf, headerJSON...)
	buf = append(buf, 0x00)
	buf = append(buf, part...)
	return buf, nil
}

// ParsePlaintext splits a decrypted blob-chunk plaintext back into its
// header and raw part bytes.
func ParsePlaintext(plaintext []byte) (model.BlobHeader, []byte, error) {
	sep := bytes.IndexByte(plaintext, 0x00)
	if sep < 0 {
		return model.BlobHeader{}, nil, fmt.Errorf("blobseg: missing header separator")
	}

	var header model.BlobHeader
	if err := json.Unmarshal(plaintext[:sep], &header); err != nil {
		return model.BlobHeader{}, nil, fmt.Errorf("blobseg: decoding blob header: %w", err)
	}
	return header, plaintext[sep+1:], nil
}
