package containererr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Wrap(Corrupt, "chunk 3 failed authentication", fmt.Errorf("cipher: message authentication failed"))

	kind, ok := KindOf(err)
	if !ok || kind != Corrupt {
		t.Fatalf("KindOf() = %v, %v; want Corrupt, true", kind, ok)
	}

	wrapped := fmt.Errorf("decode: %w", err)
	kind, ok = KindOf(wrapped)
	if !ok || kind != Corrupt {
		t.Fatalf("KindOf(wrapped) = %v, %v; want Corrupt, true", kind, ok)
	}
}

func TestErrorIs(t *testing.T) {
	err := New(InvalidPassword, "first chunk auth failed")
	sentinel := New(InvalidPassword, "")

	if !errors.Is(err, sentinel) {
		t.Fatal("errors.Is should match on Kind")
	}

	other := New(Corrupt, "")
	if errors.Is(err, other) {
		t.Fatal("errors.Is should not match a different Kind")
	}
}

func TestWithPaths(t *testing.T) {
	err := New(IncompleteSplitBlob, "reassembly incomplete").WithPaths([]string{"a.bin", "b.bin"})
	if len(err.Paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(err.Paths))
	}
}
