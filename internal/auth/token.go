// Package auth issues and checks the bearer tokens carried on transfer RPCs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/theblitlabs/parity-ml/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "Bearer "
	issuer           = "parity-ml"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrEmptySecret  = errors.New("auth secret must not be empty")
)

// Authority signs and verifies HS256 tokens with one shared secret.
type Authority struct {
	secret []byte
	now    func() time.Time
}

func NewAuthority(secret string) (*Authority, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Authority{secret: []byte(secret), now: time.Now}, nil
}

// Issue returns a signed token for subject valid for ttl.
func (a *Authority) Issue(subject string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.StandardClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify parses raw and returns its claims when the signature and expiry hold.
func (a *Authority) Verify(raw string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	return claims, nil
}

func tokenFromContext(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingToken
	}
	values := md.Get(authorizationKey)
	if len(values) == 0 || !strings.HasPrefix(values[0], bearerPrefix) {
		return "", ErrMissingToken
	}
	return strings.TrimPrefix(values[0], bearerPrefix), nil
}

// UnaryServerInterceptor rejects calls without a valid bearer token.
func (a *Authority) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		var claims *jwt.StandardClaims
		raw, err := tokenFromContext(ctx)
		if err == nil {
			claims, err = a.Verify(raw)
		}
		if err != nil {
			log := logger.WithComponent("auth")
			log.Warn().
				Err(err).
				Str("method", info.FullMethod).
				Msg("Rejected unauthenticated call")
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(WithClaims(ctx, claims), req)
	}
}

type claimsKey struct{}

// WithClaims stores verified claims on ctx.
func WithClaims(ctx context.Context, claims *jwt.StandardClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims of the authenticated caller, if any.
func ClaimsFromContext(ctx context.Context) (*jwt.StandardClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.StandardClaims)
	return claims, ok && claims != nil
}

// TokenCredentials attaches a bearer token to every RPC.
type TokenCredentials struct {
	Token  string
	Secure bool
}

func (c TokenCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{authorizationKey: bearerPrefix + c.Token}, nil
}

func (c TokenCredentials) RequireTransportSecurity() bool {
	return c.Secure
}
