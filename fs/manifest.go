package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/fwojciec/docmirror"
)

// Ensure ManifestStore implements docmirror.ManifestStore at compile time.
var _ docmirror.ManifestStore = (*ManifestStore)(nil)

// ManifestStore reads and writes the manifest as indented UTF-8 JSON.
type ManifestStore struct {
	path string
}

// NewManifestStore creates a ManifestStore for docmirror.ManifestFilename
// inside dir.
func NewManifestStore(dir string) *ManifestStore {
	return &ManifestStore{path: filepath.Join(dir, docmirror.ManifestFilename)}
}

// Path returns the manifest file path.
func (s *ManifestStore) Path() string {
	return s.path
}

// Load returns the stored manifest. A missing file yields an empty manifest;
// an unreadable one yields EINVALID.
func (s *ManifestStore) Load(ctx context.Context) (*docmirror.Manifest, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return docmirror.NewManifest(), nil
	} else if err != nil {
		return nil, err
	}

	var m docmirror.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, docmirror.Errorf(docmirror.EINVALID, "failed to parse manifest %s: %v", s.path, err)
	}
	if m.Files == nil {
		m.Files = make(map[string]*docmirror.FileRecord)
	}
	return &m, nil
}

// Save replaces the stored manifest.
func (s *ManifestStore) Save(ctx context.Context, m *docmirror.Manifest) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return writeFileAtomic(s.path, bytes.TrimRight(buf.Bytes(), "\n"))
}
