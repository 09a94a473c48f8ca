package cli

import (
	"context"
	"fmt"

	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/rpc"
	"google.golang.org/grpc"
)

// dialOptions builds transport credentials from the TLS section and, when an
// auth secret is configured, a bearer token for auth.subject.
func dialOptions(cfg *config.Config) ([]grpc.DialOption, error) {
	creds, err := rpc.ClientCredentials(cfg.TLS)
	if err != nil {
		return nil, err
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}

	if cfg.Auth.Secret != "" {
		authority, err := auth.NewAuthority(cfg.Auth.Secret)
		if err != nil {
			return nil, err
		}
		token, err := authority.Issue(cfg.Auth.Subject, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.WithPerRPCCredentials(auth.TokenCredentials{
			Token:  token,
			Secure: cfg.TLS.Enabled(),
		}))
	}
	return opts, nil
}

// connect dials the configured server and returns a typed client with a
// close func.
func connect(ctx context.Context, cfg *config.Config) (*rpc.Client, func(), error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	conn, err := rpc.Dial(ctx, cfg.Client.ServerAddr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return rpc.NewClient(conn), func() { conn.Close() }, nil
}

func withTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Client.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Client.Timeout)
}
