// Package encoder drives the encode side of the container pipeline: header
// plus manifest, database, and blob chunks, emitted in that fixed order
// with progress events at each boundary.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kenneth/rbuvault/internal/blobseg"
	"github.com/kenneth/rbuvault/internal/chunkpipe"
	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/containerfmt"
	"github.com/kenneth/rbuvault/internal/cryptoprim"
	"github.com/kenneth/rbuvault/internal/model"
	"github.com/kenneth/rbuvault/internal/progress"
)

// ReadBlobFunc loads one blob's full contents from the blob-storage port.
type ReadBlobFunc func(ctx context.Context, path string) ([]byte, error)

// Input is the complete set of parameters for one encode operation.
type Input struct {
	Password string
	Manifest model.Manifest
	Database model.Database
	Blobs    []model.BlobRef
	ReadBlob ReadBlobFunc
	Progress progress.Sink
}

func (in Input) sink() progress.Sink {
	if in.Progress == nil {
		return progress.Nop
	}
	return in.Progress
}

// Encode runs one full encode operation and returns the complete container
// bytes. Chunks are always emitted manifest, then database, then blobs in
// the caller's supplied order.
func Encode(ctx context.Context, in Input) ([]byte, error) {
	totalChunks := 2
	for _, b := range in.Blobs {
		totalChunks += blobseg.PartCount(b.Size)
	}

	salt, err := cryptoprim.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key := cryptoprim.DeriveKey(in.Password, salt)
	defer cryptoprim.ZeroBytes(key)

	var buf bytes.Buffer
	header := containerfmt.Header{Version: containerfmt.CurrentVersion}
	copy(header.Salt[:], salt)
	if err := containerfmt.WriteHeader(&buf, header); err != nil {
		return nil, containererr.Wrap(containererr.IoError, "writing header", err)
	}

	sink := in.sink()
	current := 0

	sink.Emit(progress.Event{Phase: progress.PhasePreparing, Current: current, Total: totalChunks})

	manifestJSON, err := json.Marshal(in.Manifest)
	if err != nil {
		return nil, containererr.Wrap(containererr.DecodeSchema, "marshaling manifest", err)
	}
	if err := chunkpipe.WriteChunk(&buf, key, containerfmt.ChunkManifest, manifestJSON); err != nil {
		return nil, err
	}
	current++
	sink.Emit(progress.Event{Phase: progress.PhasePreparing, Current: current, Total: totalChunks})

	databaseJSON, err := json.Marshal(in.Database)
	if err != nil {
		return nil, containererr.Wrap(containererr.DecodeSchema, "marshaling database snapshot", err)
	}
	if err := chunkpipe.WriteChunk(&buf, key, containerfmt.ChunkDatabase, databaseJSON); err != nil {
		return nil, err
	}
	current++
	sink.Emit(progress.Event{Phase: progress.PhaseDatabase, Current: current, Total: totalChunks})

	if err := ctx.Err(); err != nil {
		return nil, containererr.Wrap(containererr.Cancelled, "encode cancelled before blob phase", err)
	}

	for _, b := range in.Blobs {
		if err := ctx.Err(); err != nil {
			return nil, containererr.Wrap(containererr.Cancelled, "encode cancelled during blob phase", err)
		}

		data, err := in.ReadBlob(ctx, b.Path)
		if err != nil {
			return nil, containererr.Wrap(containererr.IoError, fmt.Sprintf("reading blob %q", b.Path), err)
		}

		plaintexts, err := blobseg.BuildPlaintexts(b, data)
		if err != nil {
			return nil, err
		}

		for _, pt := range plaintexts {
			if err := chunkpipe.WriteChunk(&buf, key, containerfmt.ChunkBlob, pt); err != nil {
				return nil, err
			}
			current++
		}

		sink.Emit(progress.Event{Phase: progress.PhaseBlobs, Current: current, Total: totalChunks, CurrentItem: b.Path})
	}

	sink.Emit(progress.Event{Phase: progress.PhaseFinalizing, Current: current, Total: totalChunks})

	return buf.Bytes(), nil
}

// EncodeParallel behaves like Encode but reads and frames blobs
// concurrently across a worker pool bounded by GOMAXPROCS, still appending
// the finished chunks to the output in the caller's original blob order.
// Manifest and database chunks are always written sequentially first.
func EncodeParallel(ctx context.Context, in Input) ([]byte, error) {
	totalChunks := 2
	for _, b := range in.Blobs {
		totalChunks += blobseg.PartCount(b.Size)
	}

	salt, err := cryptoprim.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key := cryptoprim.DeriveKey(in.Password, salt)
	defer cryptoprim.ZeroBytes(key)

	var buf bytes.Buffer
	header := containerfmt.Header{Version: containerfmt.CurrentVersion}
	copy(header.Salt[:], salt)
	if err := containerfmt.WriteHeader(&buf, header); err != nil {
		return nil, containererr.Wrap(containererr.IoError, "writing header", err)
	}

	sink := in.sink()
	current := 0
	sink.Emit(progress.Event{Phase: progress.PhasePreparing, Current: current, Total: totalChunks})

	manifestJSON, err := json.Marshal(in.Manifest)
	if err != nil {
		return nil, containererr.Wrap(containererr.DecodeSchema, "marshaling manifest", err)
	}
	if err := chunkpipe.WriteChunk(&buf, key, containerfmt.ChunkManifest, manifestJSON); err != nil {
		return nil, err
	}
	current++
	sink.Emit(progress.Event{Phase: progress.PhasePreparing, Current: current, Total: totalChunks})

	databaseJSON, err := json.Marshal(in.Database)
	if err != nil {
		return nil, containererr.Wrap(containererr.DecodeSchema, "marshaling database snapshot", err)
	}
	if err := chunkpipe.WriteChunk(&buf, key, containerfmt.ChunkDatabase, databaseJSON); err != nil {
		return nil, err
	}
	current++
	sink.Emit(progress.Event{Phase: progress.PhaseDatabase, Current: current, Total: totalChunks})

	if err := ctx.Err(); err != nil {
		return nil, containererr.Wrap(containererr.Cancelled, "encode cancelled before blob phase", err)
	}

	err = encodeBlobsParallel(ctx, &buf, key, in.Blobs, in.ReadBlob, func(path string, parts int) {
		current += parts
		sink.Emit(progress.Event{Phase: progress.PhaseBlobs, Current: current, Total: totalChunks, CurrentItem: path})
	})
	if err != nil {
		return nil, err
	}

	sink.Emit(progress.Event{Phase: progress.PhaseFinalizing, Current: current, Total: totalChunks})

	return buf.Bytes(), nil
}
