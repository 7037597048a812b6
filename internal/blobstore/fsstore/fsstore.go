// Package fsstore implements ports.BlobStore over the local filesystem,
// for the common case of a backup container's blobs living next to the
// application's own instance directory rather than in an object store.
package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a ports.BlobStore backed by a directory on disk. Every path
// passed to Exists/Retrieve/Store is resolved relative to Root and
// validated to stay inside it.
type Store struct {
	Root string
}

// New returns a Store rooted at dir. dir is created if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: creating root %q: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("fsstore: resolving root %q: %w", dir, err)
	}
	return &Store{Root: abs}, nil
}

// resolve joins path onto Root, since blob paths in a decoded container are
// untrusted input until this point. path is first cleaned as if rooted at
// "/", so ".." segments cannot climb above Root: "../../etc/passwd"
// resolves to Root/etc/passwd. The prefix check after the join is a final
// guard that returns an error only if the result still lies outside Root.
func (s *Store) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	full := filepath.Join(s.Root, cleaned)
	if !strings.HasPrefix(full, s.Root+string(filepath.Separator)) && full != s.Root {
		return "", fmt.Errorf("fsstore: path %q escapes root", path)
	}
	return full, nil
}

// Exists reports whether a blob is present at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fsstore: stat %q: %w", path, err)
	}
	return true, nil
}

// Retrieve reads the full contents of the blob at path.
func (s *Store) Retrieve(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("fsstore: reading %q: %w", path, err)
	}
	return data, nil
}

// Store writes data to path, creating any intermediate directories.
func (s *Store) Store(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("fsstore: creating parent dirs for %q: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("fsstore: writing %q: %w", path, err)
	}
	return nil
}
