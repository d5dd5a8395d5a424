package auth

import (
	"context"

	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/config"
)

// LoginOptions captures knobs shared by login flows.
type LoginOptions struct {
	// NoBrowser skips opening the deep link; the URL is still printed.
	NoBrowser bool
	// Credential is an existing web session credential installed before the handshake.
	Credential string
	// MaxAttempts overrides the configured poll attempt budget when > 0.
	MaxAttempts int
	// OnSession is called once the login session exists, before polling starts.
	OnSession func(session *cursor.LoginSession)
	// Metadata carries extra values copied into the saved record.
	Metadata map[string]string
	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)
}

// Authenticator runs a provider login flow.
type Authenticator interface {
	Provider() string
	Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*Auth, error)
}
