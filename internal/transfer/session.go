package transfer

import (
	"bytes"
	"hash"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session accumulates one in-flight upload. ID, Filename, Purpose and
// CreatedAt never change after priming; everything else is guarded by mu.
type Session struct {
	ID        uuid.UUID
	Filename  string
	Purpose   Purpose
	CreatedAt time.Time

	mu           sync.Mutex
	buf          bytes.Buffer
	mac          hash.Hash
	chunks       int
	lastActivity time.Time
	closed       bool
}

// Info is a read-only view of a session for listings.
type Info struct {
	ID           uuid.UUID `json:"id"`
	Filename     string    `json:"filename"`
	Purpose      Purpose   `json:"purpose"`
	Bytes        int       `json:"bytes"`
	Chunks       int       `json:"chunks"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.ID,
		Filename:     s.Filename,
		Purpose:      s.Purpose,
		Bytes:        s.buf.Len(),
		Chunks:       s.chunks,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
	}
}

// Completed is the verified payload handed back by Finish.
type Completed struct {
	SessionID uuid.UUID
	Filename  string
	Purpose   Purpose
	Payload   []byte
	Chunks    int
	MAC       []byte
}
