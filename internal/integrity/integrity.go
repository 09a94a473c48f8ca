// Package integrity implements the two integrity checks of a transfer: a
// SHA-256 digest per chunk and an HMAC-SHA256 over the reassembled payload.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"
)

const (
	DigestSize = sha256.Size
	MACSize    = sha256.Size
)

var (
	ErrIntegrity      = errors.New("data integrity compromised")
	ErrDigestMismatch = fmt.Errorf("%w: chunk digest mismatch", ErrIntegrity)
	ErrMACMismatch    = fmt.Errorf("%w: HMAC mismatch", ErrIntegrity)
	ErrEmptyKey       = errors.New("MAC key must not be empty")
)

func ChunkDigest(chunk []byte) []byte {
	sum := sha256.Sum256(chunk)
	return sum[:]
}

// VerifyChunk recomputes the digest of chunk and compares it with the one the
// sender supplied.
func VerifyChunk(chunk, digest []byte) error {
	if subtle.ConstantTimeCompare(ChunkDigest(chunk), digest) != 1 {
		return ErrDigestMismatch
	}
	return nil
}

// Key is the shared symmetric secret for the whole-transfer MAC.
type Key []byte

func NewKey(secret string) (Key, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	return Key(secret), nil
}

// MAC computes HMAC-SHA256 over payload in one pass.
func (k Key) MAC(payload []byte) []byte {
	m := k.New()
	m.Write(payload)
	return m.Sum(nil)
}

// New returns a running MAC for incremental accumulation.
func (k Key) New() hash.Hash {
	return hmac.New(sha256.New, k)
}

// VerifyMAC compares a running MAC's current value with the sender's MAC.
func VerifyMAC(running hash.Hash, mac []byte) error {
	if !hmac.Equal(running.Sum(nil), mac) {
		return ErrMACMismatch
	}
	return nil
}
