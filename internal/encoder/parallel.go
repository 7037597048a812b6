package encoder

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/kenneth/rbuvault/internal/blobseg"
	"github.com/kenneth/rbuvault/internal/chunkpipe"
	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/containerfmt"
	"github.com/kenneth/rbuvault/internal/model"
)

// blobResult holds one blob's finished chunk frames (header + ciphertext,
// in part order), or the error encountered producing them.
type blobResult struct {
	frames [][]byte
	err    error
}

// framedBlobChunks compresses, encrypts, and frames every part of one blob,
// returning the finished byte frames in part order.
func framedBlobChunks(key []byte, ref model.BlobRef, data []byte) ([][]byte, error) {
	plaintexts, err := blobseg.BuildPlaintexts(ref, data)
	if err != nil {
		return nil, err
	}

	frames := make([][]byte, len(plaintexts))
	for i, pt := range plaintexts {
		var buf bytes.Buffer
		if err := chunkpipe.WriteChunk(&buf, key, containerfmt.ChunkBlob, pt); err != nil {
			return nil, err
		}
		frames[i] = buf.Bytes()
	}
	return frames, nil
}

// encodeBlobsParallel reads and frames each blob concurrently, bounded by a
// worker pool sized to GOMAXPROCS, then appends the finished frames to w in
// the caller's original blob order. Parallelizing the read+compress+encrypt
// work is safe because each blob is independent; only the final write
// order is an invariant.
func encodeBlobsParallel(ctx context.Context, w *bytes.Buffer, key []byte, blobs []model.BlobRef, readBlob ReadBlobFunc, onBlobDone func(path string, parts int)) error {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(blobs) {
		workers = len(blobs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	results := make([]blobResult, len(blobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results[idx] = blobResult{err: containererr.Wrap(containererr.Cancelled, "encode cancelled", err)}
					continue
				}
				ref := blobs[idx]
				data, err := readBlob(ctx, ref.Path)
				if err != nil {
					results[idx] = blobResult{err: containererr.Wrap(containererr.IoError, fmt.Sprintf("reading blob %q", ref.Path), err)}
					continue
				}
				frames, err := framedBlobChunks(key, ref, data)
				results[idx] = blobResult{frames: frames, err: err}
			}
		}()
	}

	for i := range blobs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, res := range results {
		if res.err != nil {
			return res.err
		}
		for _, frame := range res.frames {
			w.Write(frame)
		}
		onBlobDone(blobs[i].Path, len(res.frames))
	}
	return nil
}
