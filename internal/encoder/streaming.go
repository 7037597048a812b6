package encoder

import (
	"context"
	"io"

	"github.com/kenneth/rbuvault/internal/cryptoprim"
)

// EncodeStream behaves like Encode but decouples running the encode from
// writing the result to dst: the finished container is handed to dst
// through a bounded, backpressured queue instead of a direct write, so a
// slow or rate-limited dst (a throttled upload, a pipe to another
// process) applies backpressure onto the copy loop without blocking the
// encode goroutine indefinitely on an unbounded buffer.
func EncodeStream(ctx context.Context, in Input, dst io.Writer) error {
	queue := cryptoprim.NewBoundedQueueWithContext(ctx, 4<<20)
	done := make(chan error, 1)

	go func() {
		out, err := Encode(ctx, in)
		if err != nil {
			done <- err
			queue.Close()
			return
		}
		_, writeErr := queue.Write(out)
		done <- writeErr
		queue.Close()
	}()

	buf := make([]byte, 64*1024)
	var copyErr error
	for {
		n, err := queue.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				copyErr = werr
				break
			}
		}
		if err != nil {
			// BoundedQueue reports both a normal, fully-drained close and a
			// real cancellation as context.Canceled; the producer's own
			// error (captured via done) is what actually distinguishes them.
			if err != context.Canceled {
				copyErr = err
			}
			break
		}
	}

	if produceErr := <-done; produceErr != nil {
		return produceErr
	}
	return copyErr
}
