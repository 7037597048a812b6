// Package chunkpipe composes the compress/encrypt/frame chain that turns
// one typed plaintext payload into an on-disk chunk, and reverses it on
// decode.
package chunkpipe

import (
	"io"
	"log"

	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/containerfmt"
	"github.com/kenneth/rbuvault/internal/cryptoprim"
	"github.com/kenneth/rbuvault/internal/debug"
	"github.com/kenneth/rbuvault/internal/gzipcodec"
)

// WriteChunk compresses plaintext, encrypts the result under key, and
// writes the framed chunk to w: gzip(plaintext) -> AES-256-GCM -> frame.
func WriteChunk(w io.Writer, key []byte, chunkType containerfmt.ChunkType, plaintext []byte) error {
	compressed, err := gzipcodec.Compress(plaintext)
	if err != nil {
		return err
	}

	nonce, ciphertext, err := cryptoprim.Encrypt(key, compressed)
	if err != nil {
		return err
	}

	ch := containerfmt.ChunkHeader{
		PayloadLength: uint32(len(ciphertext)),
		Type:          chunkType,
	}
	copy(ch.Nonce[:], nonce)

	if err := containerfmt.WriteChunkHeader(w, ch); err != nil {
		return containererr.Wrap(containererr.IoError, "writing chunk header", err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return containererr.Wrap(containererr.IoError, "writing chunk payload", err)
	}
	if debug.Enabled() {
		log.Printf("chunkpipe: wrote chunk type=%d plaintext=%dB compressed=%dB ciphertext=%dB",
			chunkType, len(plaintext), len(compressed), len(ciphertext))
	}
	return nil
}

// Chunk is one decoded chunk: its type tag and decrypted, decompressed
// plaintext.
type Chunk struct {
	Type      containerfmt.ChunkType
	Plaintext []byte
}

// remainer is implemented by *bytes.Reader, the only reader this package
// is ever handed. When present, it lets ReadChunk reject a payload length
// that overruns the remaining bytes before trusting it for allocation.
type remainer interface{ Len() int }

// ReadChunk reads one framed chunk from r and reverses WriteChunk: frame ->
// AES-256-GCM -> gunzip. isFirst controls whether an authentication
// failure is reported as InvalidPassword (first chunk) or Corrupt (later
// chunk), per the load-bearing distinction in the container's error model.
// Returns io.EOF (unwrapped) when r is exhausted at a clean chunk boundary.
func ReadChunk(r io.Reader, key []byte, isFirst bool) (Chunk, error) {
	ch, err := containerfmt.ReadChunkHeader(r)
	if err != nil {
		return Chunk{}, err
	}
	if rem, ok := r.(remainer); ok && int64(ch.PayloadLength) > int64(rem.Len()) {
		return Chunk{}, containererr.New(containererr.Truncated, "chunk payload overruns end of file")
	}

	pool := cryptoprim.GetGlobalBufferPool()
	payload := pool.Get(int(ch.PayloadLength))[:ch.PayloadLength]
	if _, err := io.ReadFull(r, payload); err != nil {
		pool.Put(payload)
		return Chunk{}, containererr.Wrap(containererr.Truncated, "chunk payload shorter than declared length", err)
	}

	compressed, err := cryptoprim.Decrypt(key, ch.Nonce[:], payload)
	pool.Put(payload)
	if err != nil {
		if isFirst {
			return Chunk{}, containererr.Wrap(containererr.InvalidPassword, "first chunk failed authentication", err)
		}
		return Chunk{}, containererr.Wrap(containererr.Corrupt, "chunk failed authentication", err)
	}

	plaintext, err := gzipcodec.Decompress(compressed)
	if err != nil {
		return Chunk{}, err
	}

	if debug.Enabled() {
		log.Printf("chunkpipe: read chunk type=%d ciphertext=%dB plaintext=%dB",
			ch.Type, ch.PayloadLength, len(plaintext))
	}

	return Chunk{Type: ch.Type, Plaintext: plaintext}, nil
}
