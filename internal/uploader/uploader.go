// Package uploader drives the client side of a transfer: encode, prime, send
// digested chunks and finish with the whole-payload MAC.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theblitlabs/parity-ml/internal/codec"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/rpc"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

const DefaultChunkSize = 1024

var ErrRejected = errors.New("transfer rejected by server")

// UploadResult describes a transfer the server accepted.
type UploadResult struct {
	SessionID string
	Filename  string
	Purpose   transfer.Purpose
	Bytes     int
	Chunks    int
}

type Uploader struct {
	client    rpc.TransferClient
	key       integrity.Key
	chunkSize int
}

func New(client rpc.TransferClient, key integrity.Key, chunkSize int) *Uploader {
	if chunkSize <= 0 || chunkSize > DefaultChunkSize {
		chunkSize = DefaultChunkSize
	}
	return &Uploader{client: client, key: key, chunkSize: chunkSize}
}

// Split cuts payload into consecutive chunks of at most size bytes. An empty
// payload yields no chunks.
func Split(payload []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]byte, 0, (len(payload)+size-1)/size)
	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}

// Upload encodes the file at path for purpose and transfers it under its base
// name. The extension is checked before any call reaches the server.
func (u *Uploader) Upload(ctx context.Context, purpose transfer.Purpose, path string) (*UploadResult, error) {
	filename := filepath.Base(path)
	if err := transfer.ValidateFilename(filename, purpose); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	payload, err := codec.EncodeFile(purpose.Kind(), f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return u.UploadPayload(ctx, filename, purpose, payload)
}

func rejected(phase string, message string) error {
	return fmt.Errorf("%w: %s replied %q", ErrRejected, phase, message)
}

// UploadPayload runs the prime, send and finish phases for an already encoded
// payload. It stops at the first failed or non-OK reply.
func (u *Uploader) UploadPayload(ctx context.Context, filename string, purpose transfer.Purpose, payload []byte) (*UploadResult, error) {
	log := logger.WithComponent("uploader")

	ack, err := u.client.PrimeSend(ctx, &rpc.PrimeRequest{Filename: filename, Purpose: purpose})
	if err != nil {
		return nil, fmt.Errorf("prime %s: %w", filename, err)
	}
	if !ack.OK() {
		return nil, rejected("prime", ack.Message)
	}
	sessionID := ack.SessionID

	log.Info().
		Str("session_id", sessionID).
		Str("filename", filename).
		Str("purpose", purpose.String()).
		Int("bytes", len(payload)).
		Msg("Transfer primed")

	chunks := Split(payload, u.chunkSize)
	for i, chunk := range chunks {
		ack, err := u.client.SendFile(ctx, &rpc.SendRequest{
			SessionID: sessionID,
			Filename:  filename,
			Content:   chunk,
			Digest:    integrity.ChunkDigest(chunk),
		})
		if err != nil {
			return nil, fmt.Errorf("send chunk %d of %s: %w", i, filename, err)
		}
		if !ack.OK() {
			return nil, rejected(fmt.Sprintf("chunk %d", i), ack.Message)
		}
		log.Debug().
			Str("session_id", sessionID).
			Int("chunk", i+1).
			Int("of", len(chunks)).
			Int("size", len(chunk)).
			Msg("Chunk sent")
	}

	ack, err = u.client.FinishTransfer(ctx, &rpc.FinishRequest{
		SessionID: sessionID,
		Filename:  filename,
		MAC:       u.key.MAC(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("finish %s: %w", filename, err)
	}
	if !ack.OK() {
		return nil, rejected("finish", ack.Message)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Msg("Transfer complete")

	return &UploadResult{
		SessionID: sessionID,
		Filename:  filename,
		Purpose:   purpose,
		Bytes:     len(payload),
		Chunks:    len(chunks),
	}, nil
}
