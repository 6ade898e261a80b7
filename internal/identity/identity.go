// Package identity resolves the stable user id that partitions puzzle
// progress and game sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrNoIdentity means no authenticated actor could be established. Callers
// treat it as "no progress available".
var ErrNoIdentity = errors.New("no authenticated user")

// Provider turns a presented credential into a user id. The credential is
// whatever the transport carries (a bearer token over HTTP, nothing over
// stdio).
type Provider interface {
	Identify(ctx context.Context, credential string) (string, error)
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the user id stored by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Resolve prefers a user already placed on ctx and falls back to asking p.
func Resolve(ctx context.Context, p Provider, credential string) (string, error) {
	if id, ok := UserFrom(ctx); ok {
		return id, nil
	}
	if p == nil {
		return "", ErrNoIdentity
	}
	return p.Identify(ctx, credential)
}

// Static always resolves to the same user. It serves single-user modes
// such as an MCP server on stdio.
type Static string

// Identify ignores the credential.
func (s Static) Identify(context.Context, string) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoIdentity
	}
	return string(s), nil
}

// envConfig holds raw env values before post-parse validation.
type envConfig struct {
	Secret   string `env:"FEWS_AUTH_SECRET"`
	Issuer   string `env:"FEWS_AUTH_ISSUER" envDefault:"fews"`
	Audience string `env:"FEWS_AUTH_AUDIENCE" envDefault:"fews"`
	UserID   string `env:"FEWS_USER_ID" envDefault:"local"`
}

// Config selects and configures a Provider.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	UserID   string
	Now      func() time.Time
}

// LoadConfigFromEnv reads identity configuration from the environment.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse identity env: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	cfg := Config{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		UserID:   strings.TrimSpace(raw.UserID),
		Now:      now,
	}
	if secret := strings.TrimSpace(raw.Secret); secret != "" {
		if len(secret) < minSecretLen {
			return Config{}, fmt.Errorf("FEWS_AUTH_SECRET must be at least %d bytes", minSecretLen)
		}
		cfg.Secret = []byte(secret)
	}
	return cfg, nil
}

// Authenticated reports whether bearer tokens are required.
func (c Config) Authenticated() bool {
	return len(c.Secret) > 0
}

// Provider returns a JWT verifier when a secret is configured and a Static
// provider for UserID otherwise.
func (c Config) Provider() (Provider, error) {
	if !c.Authenticated() {
		return Static(c.UserID), nil
	}
	return NewJWT(c)
}
