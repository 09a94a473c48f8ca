package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/theblitlabs/parity-ml/internal/api"
	"github.com/theblitlabs/parity-ml/internal/api/handlers"
	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/events"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/messaging/heartbeat"
	"github.com/theblitlabs/parity-ml/internal/monitoring/health"
	"github.com/theblitlabs/parity-ml/internal/monitoring/metrics"
	"github.com/theblitlabs/parity-ml/internal/server"
	"github.com/theblitlabs/parity-ml/internal/storage"
	"github.com/theblitlabs/parity-ml/internal/telemetry"
	"github.com/theblitlabs/parity-ml/internal/training"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"github.com/theblitlabs/parity-ml/pkg/database"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

const apiEndpoint = "/api"

// openCatalog uses the configured SQL database when database.url is set and an in-memory
// catalog otherwise. The returned func releases the connection.
func openCatalog(ctx context.Context, cfg *config.Config, checker *health.HealthChecker) (catalog.Catalog, func(), error) {
	log := logger.WithComponent("server")

	if cfg.Database.URL == "" {
		log.Warn().Msg("No database configured, artifact catalog is in-memory")
		return catalog.NewMemoryCatalog(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Connect(connectCtx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlCatalog := catalog.NewSQLCatalog(db)
	if err := sqlCatalog.Migrate(connectCtx); err != nil {
		db.Close()
		return nil, nil, err
	}
	checker.Register("database", db.PingContext)

	log.Info().Str("driver", cfg.Database.Driver).Msg("Successfully connected to database")

	return sqlCatalog, func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}, nil
}

// serverStatus feeds the heartbeat from the live session table and the
// health checker.
type serverStatus struct {
	sessions *transfer.Manager
	*health.HealthChecker
}

func (s serverStatus) ActiveSessions() int {
	return len(s.sessions.Sessions())
}

func RunServer(ctx context.Context, configPath string) error {
	log := logger.WithComponent("server")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Error().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	key, err := integrity.NewKey(cfg.Transfer.MACKey)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	checker := health.NewHealthChecker(30 * time.Second)
	checker.Register("storage", store.Ping)

	cat, closeCatalog, err := openCatalog(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeCatalog()

	var authority *auth.Authority
	if cfg.Auth.Secret != "" {
		authority, err = auth.NewAuthority(cfg.Auth.Secret)
		if err != nil {
			return err
		}
	} else {
		log.Warn().Msg("auth.secret is empty, RPCs and admin API are unauthenticated")
	}

	sessions := transfer.NewManager(key, cfg.Transfer.SessionTTL)
	go sessions.StartReaper(ctx, cfg.Transfer.ReapInterval)

	hub := events.NewHub()
	defer hub.Close()

	svc := server.NewTransferService(sessions, store, cat, training.NewPipeline(nil), hub)
	grpcServer, err := server.NewGRPCServer(cfg.TLS, authority, svc)
	if err != nil {
		return err
	}

	systemMetrics := metrics.NewSystemMetricsCollector(0)
	admin := handlers.NewAdminHandler(sessions, cat, checker, systemMetrics)
	router := api.NewRouter(admin, hub, authority, apiEndpoint)

	checker.Start(ctx)

	if cfg.Heartbeat.URL != "" {
		hb := heartbeat.NewHeartbeatService(heartbeat.HeartbeatConfig{
			URL:          cfg.Heartbeat.URL,
			InstanceID:   cfg.Heartbeat.InstanceID,
			BaseInterval: cfg.Heartbeat.Interval,
			MaxBackoff:   cfg.Heartbeat.MaxBackoff,
			MaxRetries:   cfg.Heartbeat.MaxRetries,
		}, serverStatus{sessions: sessions, HealthChecker: checker}, systemMetrics)
		go func() {
			if err := hb.Start(); err != nil {
				log.Error().Err(err).Msg("Failed to start heartbeat")
			}
		}()
		defer hb.Stop()
	}

	log.Info().
		Str("rpc_addr", cfg.ServerAddr()).
		Str("admin_addr", cfg.AdminAddr()).
		Str("storage", cfg.Storage.Backend).
		Bool("tls", cfg.TLS.Enabled()).
		Msg("Server starting")

	if err := server.NewServer(cfg, grpcServer, router).Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
