package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/trajgroups/pkg/cache"
)

// FileStore keeps each result in its own directory under root. A set is
// written to a temporary directory and renamed into place, so a crash never
// leaves a partial set under the final name.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Dir returns the directory holding the artifacts of key.
func (s *FileStore) Dir(key string) string {
	return filepath.Join(s.root, cache.Hash([]byte(key)))
}

// Save implements ResultStore.
func (s *FileStore) Save(ctx context.Context, key string, a *Artifacts) error {
	enc, err := encode(a)
	if err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(s.root, ".result-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	defer os.RemoveAll(tmp)

	for name, data := range map[string][]byte{
		OrderingsName: enc.orderings,
		GroupsName:    enc.groups,
		LayersName:    enc.layers,
	} {
		if err := os.WriteFile(filepath.Join(tmp, name), data, 0o644); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	final := s.Dir(key)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load implements ResultStore.
func (s *FileStore) Load(ctx context.Context, key string) (*Artifacts, bool, error) {
	dir := s.Dir(key)
	var enc encoded
	for _, f := range []struct {
		name string
		dst  *[]byte
	}{
		{OrderingsName, &enc.orderings},
		{GroupsName, &enc.groups},
		{LayersName, &enc.layers},
	} {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("load %s: %w", key, err)
		}
		*f.dst = data
	}
	a, err := decode(key, enc)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// Delete implements ResultStore.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	return os.RemoveAll(s.Dir(key))
}

// Close does nothing for file stores.
func (s *FileStore) Close() error { return nil }

var _ ResultStore = (*FileStore)(nil)
