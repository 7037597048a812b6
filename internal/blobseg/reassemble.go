package blobseg

import (
	"sort"

	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/model"
)

type pending struct {
	header        model.BlobHeader
	expectedTotal int
	parts         map[int][]byte
}

// Reassembler implements the decode-side blob reassembly state machine: a
// map from path to outstanding parts, populated as split-blob chunks
// arrive and drained to completed blobs.
type Reassembler struct {
	inflight map[string]*pending
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{inflight: make(map[string]*pending)}
}

// Feed processes one decoded blob-chunk plaintext. It returns a completed
// Blob when the chunk completes a blob (unsplit, or the final part of a
// split blob); otherwise it returns ok=false and retains state internally.
func (r *Reassembler) Feed(plaintext []byte) (blob model.Blob, ok bool, err error) {
	header, data, err := ParsePlaintext(plaintext)
	if err != nil {
		return model.Blob{}, false, containererr.Wrap(containererr.DecodeSchema, "invalid blob chunk", err)
	}

	if header.TotalParts == nil {
		return model.Blob{Path: header.Path, MimeType: header.MimeType, Size: header.Size, Data: data}, true, nil
	}

	p, found := r.inflight[header.Path]
	if !found {
		p = &pending{
			header:        header,
			expectedTotal: *header.TotalParts,
			parts:         make(map[int][]byte),
		}
		p.header.PartIndex = nil
		p.header.TotalParts = nil
		r.inflight[header.Path] = p
	}

	idx := 0
	if header.PartIndex != nil {
		idx = *header.PartIndex
	}
	p.parts[idx] = data

	if len(p.parts) < p.expectedTotal {
		return model.Blob{}, false, nil
	}

	indices := make([]int, 0, len(p.parts))
	for i := range p.parts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var assembled []byte
	for _, i := range indices {
		assembled = append(assembled, p.parts[i]...)
	}

	delete(r.inflight, header.Path)

	return model.Blob{
		Path:     p.header.Path,
		MimeType: p.header.MimeType,
		Size:     p.header.Size,
		Data:     assembled,
	}, true, nil
}

// Finish checks that no blob reassembly is left outstanding. Call after the
// last chunk has been fed.
func (r *Reassembler) Finish() error {
	if len(r.inflight) == 0 {
		return nil
	}
	paths := make([]string, 0, len(r.inflight))
	for path := range r.inflight {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return containererr.New(containererr.IncompleteSplitBlob, "end of file with outstanding blob reassembly state").WithPaths(paths)
}
