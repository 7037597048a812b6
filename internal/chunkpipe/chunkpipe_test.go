package chunkpipe

import (
	"bytes"
	"testing"

	"github.com/kenneth/rbuvault/internal/containererr"
	"github.com/kenneth/rbuvault/internal/containerfmt"
	"github.com/kenneth/rbuvault/internal/cryptoprim"
)

func TestWriteReadRoundTrip(t *testing.T) {
	key := cryptoprim.DeriveKey("pw", bytes.Repeat([]byte{1}, 16))

	var buf bytes.Buffer
	if err := WriteChunk(&buf, key, containerfmt.ChunkManifest, []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	got, err := ReadChunk(&buf, key, true)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if got.Type != containerfmt.ChunkManifest {
		t.Fatalf("type = %v, want manifest", got.Type)
	}
	if string(got.Plaintext) != `{"hello":"world"}` {
		t.Fatalf("plaintext mismatch: %s", got.Plaintext)
	}
}

func TestReadChunkEOF(t *testing.T) {
	key := cryptoprim.DeriveKey("pw", bytes.Repeat([]byte{1}, 16))
	_, err := ReadChunk(&bytes.Buffer{}, key, true)
	if err == nil {
		t.Fatal("expected EOF error at clean boundary")
	}
}

func TestReadChunkWrongKeyFirstIsInvalidPassword(t *testing.T) {
	key := cryptoprim.DeriveKey("right", bytes.Repeat([]byte{2}, 16))
	wrongKey := cryptoprim.DeriveKey("wrong", bytes.Repeat([]byte{2}, 16))

	var buf bytes.Buffer
	if err := WriteChunk(&buf, key, containerfmt.ChunkManifest, []byte("data")); err != nil {
		t.Fatal(err)
	}

	_, err := ReadChunk(&buf, wrongKey, true)
	if kind, ok := containererr.KindOf(err); !ok || kind != containererr.InvalidPassword {
		t.Fatalf("expected InvalidPassword, got %v (ok=%v)", err, ok)
	}
}

func TestReadChunkWrongKeyLaterIsCorrupt(t *testing.T) {
	key := cryptoprim.DeriveKey("right", bytes.Repeat([]byte{3}, 16))
	wrongKey := cryptoprim.DeriveKey("wrong", bytes.Repeat([]byte{3}, 16))

	var buf bytes.Buffer
	if err := WriteChunk(&buf, key, containerfmt.ChunkBlob, []byte("data")); err != nil {
		t.Fatal(err)
	}

	_, err := ReadChunk(&buf, wrongKey, false)
	if kind, ok := containererr.KindOf(err); !ok || kind != containererr.Corrupt {
		t.Fatalf("expected Corrupt, got %v (ok=%v)", err, ok)
	}
}

func TestReadChunkTruncatedPayload(t *testing.T) {
	key := cryptoprim.DeriveKey("pw", bytes.Repeat([]byte{4}, 16))

	var buf bytes.Buffer
	if err := WriteChunk(&buf, key, containerfmt.ChunkBlob, bytes.Repeat([]byte("x"), 100)); err != nil {
		t.Fatal(err)
	}

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-10])
	_, err := ReadChunk(truncated, key, false)
	if kind, ok := containererr.KindOf(err); !ok || kind != containererr.Truncated {
		t.Fatalf("expected Truncated, got %v (ok=%v)", err, ok)
	}
}
