package mock

import (
	"context"

	"github.com/fwojciec/docmirror"
)

// Compile-time interface verification.
var (
	_ docmirror.FileStore     = (*FileStore)(nil)
	_ docmirror.ManifestStore = (*ManifestStore)(nil)
)

// FileStore is a mock implementation of docmirror.FileStore.
type FileStore struct {
	WriteFn  func(ctx context.Context, filename, content string) error
	RemoveFn func(ctx context.Context, filename string) (bool, error)
}

func (s *FileStore) Write(ctx context.Context, filename, content string) error {
	return s.WriteFn(ctx, filename, content)
}

func (s *FileStore) Remove(ctx context.Context, filename string) (bool, error) {
	return s.RemoveFn(ctx, filename)
}

// ManifestStore is a mock implementation of docmirror.ManifestStore.
type ManifestStore struct {
	LoadFn func(ctx context.Context) (*docmirror.Manifest, error)
	SaveFn func(ctx context.Context, m *docmirror.Manifest) error
}

func (s *ManifestStore) Load(ctx context.Context) (*docmirror.Manifest, error) {
	return s.LoadFn(ctx)
}

func (s *ManifestStore) Save(ctx context.Context, m *docmirror.Manifest) error {
	return s.SaveFn(ctx, m)
}
