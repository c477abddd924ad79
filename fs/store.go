// Package fs provides file-based storage for mirrored documentation and the
// manifest that tracks it.
package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/docmirror"
)

// Ensure FileStore implements docmirror.FileStore at compile time.
var _ docmirror.FileStore = (*FileStore)(nil)

// FileStore writes mirrored files into a single flat directory.
// Writes go to a temporary file first and are renamed into place, so a
// crashed run never leaves a half-written document behind.
type FileStore struct {
	dir string
}

// NewFileStore creates a new FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Write replaces filename with content, creating the directory if needed.
func (s *FileStore) Write(ctx context.Context, filename, content string) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(content))
}

// Remove deletes filename if it exists.
func (s *FileStore) Remove(ctx context.Context, filename string) (bool, error) {
	path, err := s.path(filename)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// path resolves filename inside the store, rejecting anything that is not a
// plain file name.
func (s *FileStore) path(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) || filepath.Base(filename) != filename {
		return "", docmirror.Errorf(docmirror.EINVALID, "invalid filename %q: path traversal not allowed", filename)
	}
	return filepath.Join(s.dir, filename), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
