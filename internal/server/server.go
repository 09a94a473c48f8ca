package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/rpc"
	"github.com/theblitlabs/parity-ml/internal/telemetry"
	"github.com/theblitlabs/parity-ml/pkg/logger"
	"google.golang.org/grpc"
)

// NewGRPCServer builds the transfer gRPC server with transport credentials
// from cfg. A nil authority disables bearer-token checks.
func NewGRPCServer(cfg config.TLSConfig, authority *auth.Authority, svc rpc.TransferServer) (*grpc.Server, error) {
	creds, err := rpc.ServerCredentials(cfg)
	if err != nil {
		return nil, err
	}

	interceptors := []grpc.UnaryServerInterceptor{telemetry.UnaryServerInterceptor()}
	if authority != nil {
		interceptors = append(interceptors, authority.UnaryServerInterceptor())
	}

	s := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	rpc.RegisterTransferServer(s, svc)
	return s, nil
}

// Server hosts the transfer RPC service and the admin HTTP API.
type Server struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	grpcAddr   string
}

func NewServer(cfg *config.Config, grpcServer *grpc.Server, admin http.Handler) *Server {
	s := &Server{
		grpcServer: grpcServer,
		grpcAddr:   cfg.ServerAddr(),
	}
	if admin != nil {
		s.httpServer = &http.Server{
			Addr:        cfg.AdminAddr(),
			Handler:     admin,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		}
	}
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve accepts RPCs on lis and admin requests on the admin address until ctx
// is done or either server fails, then stops both.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log := logger.WithComponent("server")
	errCh := make(chan error, 2)

	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	if s.httpServer != nil {
		go func() {
			log.Info().Str("addr", s.httpServer.Addr).Msg("Starting admin HTTP server")
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin HTTP server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (s *Server) Stop(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Msg("Shutting down servers...")

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	return err
}
