// Package transfer tracks server-side upload sessions: priming, verified chunk
// accumulation and the final whole-payload MAC check.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

var (
	ErrSessionNotFound  = errors.New("transfer session not found")
	ErrFilenameMismatch = errors.New("filename does not match transfer session")
)

// Manager owns every active session. Lock order is always Manager.mu before
// Session.mu; a session lock is never held while acquiring the manager lock.
type Manager struct {
	key integrity.Key
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	sessions   map[uuid.UUID]*Session
	lastPrimed map[Purpose]string
}

func NewManager(key integrity.Key, ttl time.Duration) *Manager {
	return &Manager{
		key:        key,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[uuid.UUID]*Session),
		lastPrimed: make(map[Purpose]string),
	}
}

// Prime opens a new session for filename and remembers it as the latest
// artifact of its purpose.
func (m *Manager) Prime(filename string, purpose Purpose) (uuid.UUID, error) {
	if err := ValidateFilename(filename, purpose); err != nil {
		return uuid.Nil, err
	}

	now := m.now()
	s := &Session{
		ID:           uuid.New(),
		Filename:     filename,
		Purpose:      purpose,
		CreatedAt:    now,
		mac:          m.key.New(),
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.lastPrimed[purpose] = filename
	active := len(m.sessions)
	m.mu.Unlock()

	log := logger.WithComponent("transfer")
	log.Info().
		Str("session_id", s.ID.String()).
		Str("filename", filename).
		Str("purpose", purpose.String()).
		Int("active_sessions", active).
		Msg("Transfer primed")

	return s.ID, nil
}

func (m *Manager) lookup(id uuid.UUID, filename string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.Filename != filename {
		return nil, fmt.Errorf("%w: session %s is for %q, got %q", ErrFilenameMismatch, id, s.Filename, filename)
	}
	return s, nil
}

// Append verifies chunk against digest and adds it to the session. A rejected
// chunk leaves the session exactly as it was. Returns the accumulated size.
func (m *Manager) Append(id uuid.UUID, filename string, chunk, digest []byte) (int, error) {
	s, err := m.lookup(id, filename)
	if err != nil {
		return 0, err
	}

	if err := integrity.VerifyChunk(chunk, digest); err != nil {
		log := logger.WithComponent("transfer")
		log.Warn().
			Str("session_id", id.String()).
			Str("filename", filename).
			Int("chunk_size", len(chunk)).
			Msg("Chunk rejected, digest mismatch")
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Finish or the reaper may have removed the session after lookup.
	if s.closed {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.buf.Write(chunk)
	s.mac.Write(chunk)
	s.chunks++
	s.lastActivity = m.now()

	return s.buf.Len(), nil
}

// Finish removes the session and checks the sender's MAC against the running
// MAC of everything accepted. On mismatch the buffer is discarded.
func (m *Manager) Finish(id uuid.UUID, filename string, mac []byte) (*Completed, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.Filename != filename {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s is for %q, got %q", ErrFilenameMismatch, id, s.Filename, filename)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	log := logger.WithComponent("transfer")

	if err := integrity.VerifyMAC(s.mac, mac); err != nil {
		log.Warn().
			Str("session_id", id.String()).
			Str("filename", filename).
			Int("bytes", s.buf.Len()).
			Msg("Transfer rejected, MAC mismatch")
		s.buf.Reset()
		return nil, err
	}

	payload := make([]byte, s.buf.Len())
	copy(payload, s.buf.Bytes())
	s.buf.Reset()

	log.Info().
		Str("session_id", id.String()).
		Str("filename", filename).
		Int("bytes", len(payload)).
		Int("chunks", s.chunks).
		Msg("Transfer verified")

	return &Completed{
		SessionID: id,
		Filename:  filename,
		Purpose:   s.Purpose,
		Payload:   payload,
		Chunks:    s.chunks,
		MAC:       mac,
	}, nil
}

// LastPrimed returns the most recently primed filename for purpose.
func (m *Manager) LastPrimed(purpose Purpose) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.lastPrimed[purpose]
	return name, ok
}

// SetLastPrimed makes filename the latest artifact of purpose without
// opening a session. Artifacts produced on the server use it.
func (m *Manager) SetLastPrimed(filename string, purpose Purpose) error {
	if err := ValidateFilename(filename, purpose); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastPrimed[purpose] = filename
	m.mu.Unlock()
	return nil
}

// Sign returns the transfer MAC of payload under the manager's key.
func (m *Manager) Sign(payload []byte) []byte {
	return m.key.MAC(payload)
}

// Sessions lists active sessions, oldest first.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Reap drops sessions idle for longer than the configured TTL and returns
// how many were removed.
func (m *Manager) Reap() int {
	if m.ttl <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.ttl)
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.lastActivity.Before(cutoff) {
			s.closed = true
			s.buf.Reset()
			expired = append(expired, s)
			delete(m.sessions, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		log := logger.WithComponent("transfer")
		for _, s := range expired {
			log.Warn().
				Str("session_id", s.ID.String()).
				Str("filename", s.Filename).
				Dur("ttl", m.ttl).
				Msg("Abandoned transfer session expired")
		}
	}
	return len(expired)
}

// StartReaper runs Reap every interval until ctx is done.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}

	log := logger.WithComponent("transfer")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Dur("ttl", m.ttl).Msg("Starting session reaper")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping session reaper")
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}
