package encoder

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kenneth/rbuvault/internal/model"
)

func TestEncodeStreamMatchesEncode(t *testing.T) {
	blobs := map[string][]byte{"a.txt": []byte("hello")}
	in := Input{
		Password: "pw",
		Manifest: model.Manifest{CreatedAt: "now", Platform: "web", AppVersion: "1", FormatVersion: 1},
		Database: model.Database{Data: map[string][]model.Row{}},
		Blobs:    []model.BlobRef{{Path: "a.txt", MimeType: "text/plain", Size: 5}},
		ReadBlob: blobStore(blobs),
	}

	direct, err := Encode(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := EncodeStream(context.Background(), in, &buf); err != nil {
		t.Fatalf("EncodeStream: %v", err)
	}

	if !bytes.Equal(direct, buf.Bytes()) {
		t.Fatalf("EncodeStream output differs from Encode output: %d vs %d bytes", len(direct), buf.Len())
	}
}

func TestEncodeStreamPropagatesEncodeError(t *testing.T) {
	boom := errors.New("blob store unavailable")
	in := Input{
		Password: "pw",
		Manifest: model.Manifest{CreatedAt: "now", Platform: "web", AppVersion: "1", FormatVersion: 1},
		Database: model.Database{Data: map[string][]model.Row{}},
		Blobs:    []model.BlobRef{{Path: "missing.txt", MimeType: "text/plain", Size: 5}},
		ReadBlob: func(ctx context.Context, path string) ([]byte, error) {
			return nil, boom
		},
	}

	var buf bytes.Buffer
	err := EncodeStream(context.Background(), in, &buf)
	if err == nil {
		t.Fatal("expected EncodeStream to propagate the ReadBlob error")
	}
}
