package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/browser"
	"github.com/router-for-me/cursor-login/internal/config"
	log "github.com/sirupsen/logrus"
)

// CursorAuthenticator implements the Cursor deep-login flow.
type CursorAuthenticator struct {
	// newAuth builds the handshake for a login; tests replace it.
	newAuth func(cfg *config.Config, opts *LoginOptions) *cursor.CursorAuth
}

// NewCursorAuthenticator constructs a new Cursor authenticator.
func NewCursorAuthenticator() Authenticator {
	return &CursorAuthenticator{newAuth: defaultCursorAuth}
}

func defaultCursorAuth(cfg *config.Config, opts *LoginOptions) *cursor.CursorAuth {
	if opts != nil && opts.NoBrowser {
		return cursor.NewCursorAuth(cfg, cursor.WithURLOpener(nil))
	}
	if !browser.IsAvailable() {
		log.Warn("No browser available; please open the login URL manually")
		return cursor.NewCursorAuth(cfg, cursor.WithURLOpener(nil))
	}
	return cursor.NewCursorAuth(cfg)
}

// Provider returns the provider key for cursor.
func (CursorAuthenticator) Provider() string {
	return "cursor"
}

// Login starts a deep-login session, waits for the user to approve it in the
// browser and returns the token record.
func (a CursorAuthenticator) Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*Auth, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth: configuration is required")
	}
	if opts == nil {
		opts = &LoginOptions{}
	}
	newAuth := a.newAuth
	if newAuth == nil {
		newAuth = defaultCursorAuth
	}
	authSvc := newAuth(cfg, opts)

	fmt.Println("Starting Cursor authentication...")
	session, err := authSvc.Start(ctx, opts.Credential)
	if err != nil {
		return nil, err
	}

	fmt.Printf("\nTo authenticate, please visit:\n%s\n\n", session.LoginURL)
	if opts.OnSession != nil {
		opts.OnSession(session)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = cfg.Cursor.MaxAttempts
	}
	fmt.Printf("Waiting for authorization (up to %d checks, %ds apart)...\n", maxAttempts, cfg.Cursor.PollIntervalSeconds)

	result, err := authSvc.Poll(ctx, session, maxAttempts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	storage := &cursor.CursorTokenStorage{
		AccessToken: result.AccessToken,
		UserID:      result.UserID,
		AuthID:      result.AuthID,
		LastRefresh: now.UTC().Format(time.RFC3339),
		Type:        "cursor",
	}

	metadata := map[string]any{
		"type":         "cursor",
		"access_token": result.AccessToken,
		"user_id":      result.UserID,
		"auth_id":      result.AuthID,
		"timestamp":    now.UnixMilli(),
	}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	fileName := cursorFileName(result.UserID, now)
	label := result.UserID
	if label == "" {
		label = "Cursor User"
	}

	fmt.Println("\nCursor authentication successful!")
	return &Auth{
		ID:        fileName,
		Provider:  a.Provider(),
		FileName:  fileName,
		Label:     label,
		Storage:   storage,
		Metadata:  metadata,
		CreatedAt: now,
	}, nil
}

// cursorFileName names the record after the user id, falling back to a timestamp.
func cursorFileName(userID string, now time.Time) string {
	if safe := sanitizeFileName(userID); safe != "" {
		return fmt.Sprintf("cursor-%s.json", safe)
	}
	return fmt.Sprintf("cursor-%d.json", now.UnixMilli())
}

func sanitizeFileName(raw string) string {
	var result strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-' {
			result.WriteRune(r)
		}
	}
	return strings.Trim(result.String(), ".")
}
