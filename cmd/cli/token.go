package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/config"
)

func RunToken(configPath, subject string, ttl time.Duration, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not configured")
	}
	if subject == "" {
		subject = cfg.Auth.Subject
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	authority, err := auth.NewAuthority(cfg.Auth.Secret)
	if err != nil {
		return err
	}
	token, err := authority.Issue(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
