package cursor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/router-for-me/cursor-login/internal/misc"
)

// LoginSession is one deep-login attempt. It is immutable once Start returns it.
type LoginSession struct {
	// UUID is the correlation id shared by the deep link and the poll requests.
	UUID string `json:"uuid"`
	// Verifier is the PKCE secret presented only to the poll endpoint.
	Verifier string `json:"verifier"`
	// LoginURL is the deep link opened for the user.
	LoginURL string `json:"login_url"`
}

// PollResult is the outcome of a successful poll.
type PollResult struct {
	// UserID is the second "|" separated segment of AuthID, or empty.
	UserID string `json:"user_id"`
	// AccessToken is the issued access token.
	AccessToken string `json:"access_token"`
	// AuthID is the raw compound auth identifier returned by the provider.
	AuthID string `json:"auth_id,omitempty"`
}

// userIDFromAuthID takes the segment after the first "|" of an auth id such as
// "auth0|user_01ABC", returning "" when there is no delimiter.
func userIDFromAuthID(authID string) string {
	if !strings.Contains(authID, "|") {
		return ""
	}
	return strings.Split(authID, "|")[1]
}

// CursorTokenStorage is the token record written after a successful login.
type CursorTokenStorage struct {
	// AccessToken is the issued access token.
	AccessToken string `json:"access_token"`
	// UserID is the provider user id derived from AuthID.
	UserID string `json:"user_id,omitempty"`
	// AuthID is the raw compound auth identifier.
	AuthID string `json:"auth_id,omitempty"`
	// LastRefresh is the RFC3339 time the token was obtained.
	LastRefresh string `json:"last_refresh"`
	// Type is always "cursor".
	Type string `json:"type"`
}

// SaveTokenToFile serializes the token storage to a JSON file.
func (ts *CursorTokenStorage) SaveTokenToFile(authFilePath string) error {
	misc.LogSavingCredentials(authFilePath)
	ts.Type = "cursor"

	if err := os.MkdirAll(filepath.Dir(authFilePath), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	f, err := os.OpenFile(authFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(ts); err != nil {
		return fmt.Errorf("failed to write token to file: %w", err)
	}
	return nil
}
