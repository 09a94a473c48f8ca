package cli

import (
	"context"
	"errors"
	"time"

	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/pkg/database"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

func RunMigrate(ctx context.Context, configPath string) error {
	log := logger.WithComponent("migrate")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is not configured")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Connect(connectCtx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := catalog.NewSQLCatalog(db).Migrate(ctx); err != nil {
		return err
	}
	log.Info().Msg("Artifact catalog migrated")
	return nil
}
