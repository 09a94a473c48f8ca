package transfer

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theblitlabs/parity-ml/internal/integrity"
)

func testKey(t *testing.T) integrity.Key {
	t.Helper()
	key, err := integrity.NewKey("secret")
	require.NoError(t, err)
	return key
}

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func chunks(payload []byte, size int) [][]byte {
	var out [][]byte
	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, payload[start:end])
	}
	return out
}

func sendAll(t *testing.T, m *Manager, id uuid.UUID, name string, payload []byte) {
	t.Helper()
	for _, c := range chunks(payload, 1024) {
		_, err := m.Append(id, name, c, integrity.ChunkDigest(c))
		require.NoError(t, err)
	}
}

func sessionBytes(t *testing.T, m *Manager, id uuid.UUID) int {
	t.Helper()
	for _, info := range m.Sessions() {
		if info.ID == id {
			return info.Bytes
		}
	}
	t.Fatalf("session %s not listed", id)
	return 0
}

func TestManagerTransfer(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	payload := randomPayload(t, 5000)
	id, err := m.Prime("train.csv", PurposeTraining)
	require.NoError(t, err)

	sendAll(t, m, id, "train.csv", payload)
	assert.Equal(t, len(payload), sessionBytes(t, m, id))

	done, err := m.Finish(id, "train.csv", key.MAC(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, done.Payload)
	assert.Equal(t, 5, done.Chunks)
	assert.Equal(t, PurposeTraining, done.Purpose)
	assert.Equal(t, id, done.SessionID)

	assert.Empty(t, m.Sessions())

	_, err = m.Finish(id, "train.csv", key.MAC(payload))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerEmptyPayload(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	id, err := m.Prime("coefs.txt", PurposeModelCoefficients)
	require.NoError(t, err)

	done, err := m.Finish(id, "coefs.txt", key.MAC(nil))
	require.NoError(t, err)
	assert.Empty(t, done.Payload)
	assert.Zero(t, done.Chunks)
}

func TestManagerTamperedChunk(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	payload := randomPayload(t, 3000)
	parts := chunks(payload, 1024)

	id, err := m.Prime("train.csv", PurposeTraining)
	require.NoError(t, err)

	_, err = m.Append(id, "train.csv", parts[0], integrity.ChunkDigest(parts[0]))
	require.NoError(t, err)
	before := sessionBytes(t, m, id)

	digest := integrity.ChunkDigest(parts[1])
	tampered := append([]byte(nil), parts[1]...)
	tampered[100] ^= 0x01

	_, err = m.Append(id, "train.csv", tampered, digest)
	assert.ErrorIs(t, err, integrity.ErrDigestMismatch)
	assert.Equal(t, before, sessionBytes(t, m, id))

	// the untampered chunk is still accepted afterwards
	total, err := m.Append(id, "train.csv", parts[1], digest)
	require.NoError(t, err)
	assert.Equal(t, len(parts[0])+len(parts[1]), total)
}

func TestManagerTamperedMAC(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	payload := randomPayload(t, 2500)
	id, err := m.Prime("predict.csv", PurposePredictionInput)
	require.NoError(t, err)
	sendAll(t, m, id, "predict.csv", payload)

	mac := key.MAC(payload)
	mac[0] ^= 0xFF

	_, err = m.Finish(id, "predict.csv", mac)
	assert.ErrorIs(t, err, integrity.ErrMACMismatch)

	// buffer discarded together with the session
	assert.Empty(t, m.Sessions())
	_, err = m.Append(id, "predict.csv", payload[:10], integrity.ChunkDigest(payload[:10]))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerWrongKey(t *testing.T) {
	m := NewManager(testKey(t), time.Minute)
	other, err := integrity.NewKey("not-the-secret")
	require.NoError(t, err)

	payload := randomPayload(t, 100)
	id, err := m.Prime("train.csv", PurposeTraining)
	require.NoError(t, err)
	sendAll(t, m, id, "train.csv", payload)

	_, err = m.Finish(id, "train.csv", other.MAC(payload))
	assert.ErrorIs(t, err, integrity.ErrIntegrity)
}

func TestManagerRejectsUnknownAndMismatched(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	chunk := []byte("abc")
	_, err := m.Append(uuid.New(), "train.csv", chunk, integrity.ChunkDigest(chunk))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id, err := m.Prime("train.csv", PurposeTraining)
	require.NoError(t, err)

	_, err = m.Append(id, "other.csv", chunk, integrity.ChunkDigest(chunk))
	assert.ErrorIs(t, err, ErrFilenameMismatch)

	_, err = m.Finish(id, "other.csv", key.MAC(nil))
	assert.ErrorIs(t, err, ErrFilenameMismatch)

	// a mismatched finish does not consume the session
	_, err = m.Finish(id, "train.csv", key.MAC(nil))
	assert.NoError(t, err)
}

func TestManagerPrimeValidation(t *testing.T) {
	m := NewManager(testKey(t), time.Minute)

	cases := []struct {
		name    string
		file    string
		purpose Purpose
		err     error
	}{
		{"unsupported extension", "model.dat", PurposeModelCoefficients, ErrInvalidFilename},
		{"coefficients need txt", "coefs.csv", PurposeModelCoefficients, ErrInvalidFilename},
		{"training needs csv", "train.txt", PurposeTraining, ErrInvalidFilename},
		{"path traversal", "../etc/train.csv", PurposeTraining, ErrInvalidFilename},
		{"nested path", "data/train.csv", PurposeTraining, ErrInvalidFilename},
		{"empty", "", PurposeTraining, ErrInvalidFilename},
		{"unknown purpose", "train.csv", PurposeUnknown, ErrInvalidPurpose},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Prime(tc.file, tc.purpose)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.Empty(t, m.Sessions())
	_, ok := m.LastPrimed(PurposeTraining)
	assert.False(t, ok)
}

func TestManagerLastPrimed(t *testing.T) {
	m := NewManager(testKey(t), time.Minute)

	_, err := m.Prime("first.csv", PurposeTraining)
	require.NoError(t, err)
	_, err = m.Prime("second.csv", PurposeTraining)
	require.NoError(t, err)
	_, err = m.Prime("coefs.txt", PurposeModelCoefficients)
	require.NoError(t, err)

	name, ok := m.LastPrimed(PurposeTraining)
	assert.True(t, ok)
	assert.Equal(t, "second.csv", name)

	name, ok = m.LastPrimed(PurposeModelCoefficients)
	assert.True(t, ok)
	assert.Equal(t, "coefs.txt", name)

	_, ok = m.LastPrimed(PurposePredictionInput)
	assert.False(t, ok)
}

func TestManagerSetLastPrimed(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	_, err := m.Prime("coefs.txt", PurposeModelCoefficients)
	require.NoError(t, err)
	require.NoError(t, m.SetLastPrimed("train.model.txt", PurposeModelCoefficients))

	name, ok := m.LastPrimed(PurposeModelCoefficients)
	assert.True(t, ok)
	assert.Equal(t, "train.model.txt", name)
	assert.Len(t, m.Sessions(), 1)

	assert.ErrorIs(t, m.SetLastPrimed("train.model.csv", PurposeModelCoefficients), ErrInvalidFilename)
	assert.ErrorIs(t, m.SetLastPrimed("../x.txt", PurposeModelCoefficients), ErrInvalidFilename)
	name, _ = m.LastPrimed(PurposeModelCoefficients)
	assert.Equal(t, "train.model.txt", name)

	assert.Equal(t, key.MAC([]byte("payload")), m.Sign([]byte("payload")))
}

func TestManagerConcurrentSessions(t *testing.T) {
	key := testKey(t)
	m := NewManager(key, time.Minute)

	const transfers = 8
	payloads := make([][]byte, transfers)
	ids := make([]uuid.UUID, transfers)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte(i)}, 4096+i*100)
		id, err := m.Prime(fmt.Sprintf("part-%d.csv", i), PurposeTraining)
		require.NoError(t, err)
		ids[i] = id
	}

	var wg sync.WaitGroup
	results := make([][]byte, transfers)
	errs := make([]error, transfers)
	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("part-%d.csv", i)
			for _, c := range chunks(payloads[i], 1024) {
				if _, err := m.Append(ids[i], name, c, integrity.ChunkDigest(c)); err != nil {
					errs[i] = err
					return
				}
			}
			done, err := m.Finish(ids[i], name, key.MAC(payloads[i]))
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = done.Payload
		}(i)
	}
	wg.Wait()

	for i := 0; i < transfers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, payloads[i], results[i])
	}
}

func TestManagerReap(t *testing.T) {
	m := NewManager(testKey(t), time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, err := m.Prime("stale.csv", PurposeTraining)
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	fresh, err := m.Prime("fresh.csv", PurposeTraining)
	require.NoError(t, err)

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, m.Reap())

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, fresh, sessions[0].ID)

	chunk := []byte("late")
	_, err = m.Append(stale, "stale.csv", chunk, integrity.ChunkDigest(chunk))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerReapDisabled(t *testing.T) {
	m := NewManager(testKey(t), 0)
	_, err := m.Prime("train.csv", PurposeTraining)
	require.NoError(t, err)
	assert.Zero(t, m.Reap())
	assert.Len(t, m.Sessions(), 1)
}
