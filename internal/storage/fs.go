package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// FSStore keeps artifacts as files directly under a root directory.
type FSStore struct {
	fs   afero.Fs
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	return NewFSStoreWithFs(afero.NewOsFs(), root)
}

// NewFSStoreWithFs backs the store with any afero filesystem.
func NewFSStoreWithFs(fsys afero.Fs, root string) (*FSStore, error) {
	if root == "" {
		root = "."
	}
	if err := fsys.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FSStore{fs: fsys, root: root}, nil
}

func (s *FSStore) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

func (s *FSStore) Create(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return f.Close()
}

func (s *FSStore) Write(_ context.Context, name string, data []byte) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}

	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	log := logger.WithComponent("storage")
	log.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Artifact written")

	return path, nil
}

func (s *FSStore) Read(_ context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

func (s *FSStore) Ping(_ context.Context) error {
	info, err := s.fs.Stat(s.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}
