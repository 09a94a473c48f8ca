package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"github.com/theblitlabs/parity-ml/internal/uploader"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

func RunUpload(ctx context.Context, configPath, purposeName, path string) error {
	log := logger.WithComponent("upload")

	purpose, err := transfer.ParsePurpose(purposeName)
	if err != nil {
		return err
	}
	// Refuse a wrong extension before touching the network.
	if err := transfer.ValidateFilename(filepath.Base(path), purpose); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	key, err := integrity.NewKey(cfg.Transfer.MACKey)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	client, closeConn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn()

	result, err := uploader.New(client, key, cfg.Transfer.ChunkSize).Upload(ctx, purpose, path)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	log.Info().
		Str("session_id", result.SessionID).
		Str("filename", result.Filename).
		Str("purpose", result.Purpose.String()).
		Int("bytes", result.Bytes).
		Int("chunks", result.Chunks).
		Msg("Upload complete")
	return nil
}
