package auth

import (
	"context"
	"fmt"

	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/util"
)

// Manager coordinates an authenticator with persistence via a token store.
type Manager struct {
	authenticators map[string]Authenticator
	store          Store
}

// NewManager constructs a manager with the provided token store and authenticators.
// If store is nil, login results are returned without being persisted.
func NewManager(store Store, authenticators ...Authenticator) *Manager {
	mgr := &Manager{
		authenticators: make(map[string]Authenticator),
		store:          store,
	}
	for i := range authenticators {
		mgr.Register(authenticators[i])
	}
	return mgr
}

// Register adds or replaces an authenticator keyed by its provider identifier.
func (m *Manager) Register(a Authenticator) {
	if a == nil {
		return
	}
	m.authenticators[a.Provider()] = a
}

// Login executes the provider login flow and persists the resulting auth record.
func (m *Manager) Login(ctx context.Context, provider string, cfg *config.Config, opts *LoginOptions) (*Auth, string, error) {
	authenticator, ok := m.authenticators[provider]
	if !ok {
		return nil, "", fmt.Errorf("auth: authenticator %s not registered", provider)
	}

	record, err := authenticator.Login(ctx, cfg, opts)
	if err != nil {
		return nil, "", err
	}
	if record == nil {
		return nil, "", fmt.Errorf("auth: authenticator %s returned nil record", provider)
	}

	if m.store == nil {
		return record, "", nil
	}

	if cfg != nil {
		if dirSetter, ok := m.store.(interface{ SetBaseDir(string) }); ok {
			authDir, errDir := util.ResolveAuthDir(cfg.AuthDir)
			if errDir != nil {
				return record, "", errDir
			}
			dirSetter.SetBaseDir(authDir)
		}
	}

	savedPath, err := m.store.Save(ctx, record)
	if err != nil {
		return record, "", err
	}
	return record, savedPath, nil
}
