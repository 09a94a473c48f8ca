// Package storage persists finished transfer artifacts by name.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/theblitlabs/parity-ml/internal/config"
)

var ErrNotFound = errors.New("artifact not found")

// Store is the byte-addressable persistence boundary for artifacts.
type Store interface {
	// Create makes an empty artifact, truncating any previous content.
	Create(ctx context.Context, name string) error
	// Write replaces the artifact content and returns where it now lives.
	Write(ctx context.Context, name string, data []byte) (string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// New builds the store selected by cfg.Backend.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StorageBackendFS:
		return NewFSStore(cfg.Dir)
	case config.StorageBackendIPFS:
		return NewIPFSStore(cfg.IPFSAPI)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
