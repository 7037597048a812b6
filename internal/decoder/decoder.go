// Package decoder drives the decode side of the container pipeline:
// header validation, a chunk-count pre-scan, then sequential chunk
// decryption and dispatch by type.
package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/kenneth/rbuvault/internal/blobseg"
	"github.com/kenneth/rbuvault/internal/chunkpipe"
	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/containerfmt"
	"github.com/kenneth/rbuvault/internal/cryptoprim"
	"github.com/kenneth/rbuvault/internal/model"
	"github.com/kenneth/rbuvault/internal/progress"
)

// Input is the complete set of parameters for one decode operation.
type Input struct {
	Bytes    []byte
	Password string
	Progress progress.Sink
}

func (in Input) sink() progress.Sink {
	if in.Progress == nil {
		return progress.Nop
	}
	return in.Progress
}

// Output is the fully reassembled result of a decode.
type Output struct {
	Manifest model.Manifest
	Database model.Database
	Blobs    []model.Blob
}

// prescan reads every chunk header in body (the container bytes past the
// fixed header) without decrypting payloads, counting chunks and
// failing fast on truncation.
func prescan(body []byte) (int, error) {
	r := bytes.NewReader(body)
	count := 0
	for {
		ch, err := containerfmt.ReadChunkHeader(r)
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, err
		}
		if int64(ch.PayloadLength) > int64(r.Len()) {
			return 0, containererr.New(containererr.Truncated, "chunk payload overruns end of file")
		}
		if _, err := r.Seek(int64(ch.PayloadLength), io.SeekCurrent); err != nil {
			return 0, containererr.Wrap(containererr.Truncated, "chunk payload overruns end of file", err)
		}
		count++
	}
}

// Decode parses and validates the header, derives the key, then iterates
// every chunk in file order, decrypting, decompressing, and dispatching by
// type.
func Decode(ctx context.Context, in Input) (Output, error) {
	r := bytes.NewReader(in.Bytes)
	header, err := containerfmt.ReadHeader(r)
	if err != nil {
		return Output{}, err
	}

	body := in.Bytes[containerfmt.HeaderSize:]
	totalChunks, err := prescan(body)
	if err != nil {
		return Output{}, err
	}

	key := cryptoprim.DeriveKey(in.Password, header.Salt[:])
	defer cryptoprim.ZeroBytes(key)

	sink := in.sink()
	sink.Emit(progress.Event{Phase: progress.PhasePreparing, Current: 0, Total: totalChunks})

	bodyReader := bytes.NewReader(body)
	reassembler := blobseg.NewReassembler()

	var out Output
	haveManifest, haveDatabase := false, false
	current := 0

	for i := 0; i < totalChunks; i++ {
		if err := ctx.Err(); err != nil {
			return Output{}, containererr.Wrap(containererr.Cancelled, "decode cancelled", err)
		}

		chunk, err := chunkpipe.ReadChunk(bodyReader, key, i == 0)
		if err != nil {
			return Output{}, err
		}

		switch chunk.Type {
		case containerfmt.ChunkManifest:
			if haveManifest {
				return Output{}, containererr.New(containererr.InvalidContainer, "duplicate manifest chunk")
			}
			if err := json.Unmarshal(chunk.Plaintext, &out.Manifest); err != nil {
				return Output{}, containererr.Wrap(containererr.DecodeSchema, "decoding manifest", err)
			}
			haveManifest = true
			current++
			sink.Emit(progress.Event{Phase: progress.PhasePreparing, Current: current, Total: totalChunks})

		case containerfmt.ChunkDatabase:
			if haveDatabase {
				return Output{}, containererr.New(containererr.InvalidContainer, "duplicate database chunk")
			}
			if err := json.Unmarshal(chunk.Plaintext, &out.Database); err != nil {
				return Output{}, containererr.Wrap(containererr.DecodeSchema, "decoding database snapshot", err)
			}
			haveDatabase = true
			current++
			sink.Emit(progress.Event{Phase: progress.PhaseDatabase, Current: current, Total: totalChunks})

		case containerfmt.ChunkBlob:
			blob, ok, err := reassembler.Feed(chunk.Plaintext)
			if err != nil {
				return Output{}, err
			}
			current++
			item := ""
			if ok {
				out.Blobs = append(out.Blobs, blob)
				item = blob.Path
			}
			sink.Emit(progress.Event{Phase: progress.PhaseBlobs, Current: current, Total: totalChunks, CurrentItem: item})

		default:
			return Output{}, containererr.New(containererr.InvalidContainer, "unknown chunk type")
		}
	}

	if !haveManifest || !haveDatabase {
		return Output{}, containererr.New(containererr.InvalidContainer, "missing required manifest or database chunk")
	}
	if err := reassembler.Finish(); err != nil {
		return Output{}, err
	}

	sink.Emit(progress.Event{Phase: progress.PhaseFinalizing, Current: current, Total: totalChunks})

	return out, nil
}

// QuickValidateResult is the outcome of QuickValidate.
type QuickValidateResult struct {
	Valid    bool
	Manifest model.Manifest
	Reason   error
}

// QuickValidate decrypts only the first chunk to check the password before
// committing to a full decode, for UI use before prompting for a restore
// password.
func QuickValidate(password string, data []byte) QuickValidateResult {
	r := bytes.NewReader(data)
	header, err := containerfmt.ReadHeader(r)
	if err != nil {
		return QuickValidateResult{Valid: false, Reason: err}
	}

	key := cryptoprim.DeriveKey(password, header.Salt[:])
	defer cryptoprim.ZeroBytes(key)

	body := data[containerfmt.HeaderSize:]
	chunk, err := chunkpipe.ReadChunk(bytes.NewReader(body), key, true)
	if err != nil {
		return QuickValidateResult{Valid: false, Reason: err}
	}
	if chunk.Type != containerfmt.ChunkManifest {
		return QuickValidateResult{Valid: false, Reason: containererr.New(containererr.InvalidContainer, "first chunk is not a manifest")}
	}

	var manifest model.Manifest
	if err := json.Unmarshal(chunk.Plaintext, &manifest); err != nil {
		return QuickValidateResult{Valid: false, Reason: containererr.Wrap(containererr.DecodeSchema, "decoding manifest", err)}
	}

	return QuickValidateResult{Valid: true, Manifest: manifest}
}
