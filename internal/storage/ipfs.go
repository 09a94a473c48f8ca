package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// ipfsShell is the part of the IPFS HTTP API the store relies on.
type ipfsShell interface {
	Add(r io.Reader, options ...shell.AddOpts) (string, error)
	Cat(path string) (io.ReadCloser, error)
	ID(peer ...string) (*shell.IdOutput, error)
}

// IPFSStore adds every artifact to IPFS and remembers the latest CID per name.
// A created but unwritten artifact reads back as empty.
type IPFSStore struct {
	shell ipfsShell

	mu   sync.RWMutex
	cids map[string]string
}

func NewIPFSStore(apiEndpoint string) (*IPFSStore, error) {
	if apiEndpoint == "" {
		apiEndpoint = "localhost:5001"
	}

	sh := shell.NewShell(apiEndpoint)
	if _, err := sh.ID(); err != nil {
		return nil, fmt.Errorf("failed to connect to IPFS node: %w", err)
	}

	return newIPFSStore(sh), nil
}

func newIPFSStore(sh ipfsShell) *IPFSStore {
	return &IPFSStore{
		shell: sh,
		cids:  make(map[string]string),
	}
}

func (s *IPFSStore) Create(_ context.Context, name string) error {
	s.mu.Lock()
	s.cids[name] = ""
	s.mu.Unlock()
	return nil
}

func (s *IPFSStore) Write(_ context.Context, name string, data []byte) (string, error) {
	cid, err := s.shell.Add(bytes.NewReader(data), shell.Pin(true), shell.CidVersion(1))
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact to IPFS: %w", err)
	}

	s.mu.Lock()
	s.cids[name] = cid
	s.mu.Unlock()

	log := logger.WithComponent("storage")
	log.Info().
		Str("name", name).
		Str("cid", cid).
		Int("bytes", len(data)).
		Msg("Artifact uploaded to IPFS")

	return "ipfs://" + cid, nil
}

func (s *IPFSStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	cid, ok := s.cids[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if cid == "" {
		return []byte{}, nil
	}

	reader, err := s.shell.Cat(cid)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve artifact from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from IPFS stream: %w", err)
	}
	return data, nil
}

// CID returns the content id last written for name.
func (s *IPFSStore) CID(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cid, ok := s.cids[name]
	return cid, ok && cid != ""
}

func (s *IPFSStore) Ping(_ context.Context) error {
	if _, err := s.shell.ID(); err != nil {
		return fmt.Errorf("IPFS node unreachable: %w", err)
	}
	return nil
}
