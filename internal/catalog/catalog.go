// Package catalog records every artifact a verified transfer produced.
package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/theblitlabs/parity-ml/internal/transfer"
)

var ErrNotFound = errors.New("artifact not found in catalog")

type Artifact struct {
	SessionID uuid.UUID        `json:"session_id"`
	Filename  string           `json:"filename"`
	Purpose   transfer.Purpose `json:"purpose"`
	Size      int64            `json:"size"`
	MAC       string           `json:"mac"`
	Location  string           `json:"location"`
	CreatedAt time.Time        `json:"created_at"`
}

type Catalog interface {
	Record(ctx context.Context, artifact *Artifact) error
	List(ctx context.Context) ([]Artifact, error)
	Latest(ctx context.Context, purpose transfer.Purpose) (*Artifact, error)
}

type entry struct {
	artifact Artifact
	seq      uint64
}

// Less orders by creation time, then by insertion order.
func (e entry) Less(than btree.Item) bool {
	o := than.(entry)
	if !e.artifact.CreatedAt.Equal(o.artifact.CreatedAt) {
		return e.artifact.CreatedAt.Before(o.artifact.CreatedAt)
	}
	return e.seq < o.seq
}

// MemoryCatalog keeps artifacts in process memory, indexed by creation time.
type MemoryCatalog struct {
	mu   sync.RWMutex
	tree *btree.BTree
	seq  uint64
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{tree: btree.New(16)}
}

func (c *MemoryCatalog) Record(_ context.Context, artifact *Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.tree.ReplaceOrInsert(entry{artifact: *artifact, seq: c.seq})
	return nil
}

// List returns artifacts newest first.
func (c *MemoryCatalog) List(_ context.Context) ([]Artifact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Artifact, 0, c.tree.Len())
	c.tree.Descend(func(i btree.Item) bool {
		out = append(out, i.(entry).artifact)
		return true
	})
	return out, nil
}

func (c *MemoryCatalog) Latest(_ context.Context, purpose transfer.Purpose) (*Artifact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var latest *Artifact
	c.tree.Descend(func(i btree.Item) bool {
		if a := i.(entry).artifact; a.Purpose == purpose {
			latest = &a
			return false
		}
		return true
	})
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}
