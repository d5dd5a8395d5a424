package cmd

import (
	sdkAuth "github.com/router-for-me/cursor-login/sdk/auth"
)

// newAuthManager creates the authentication manager with the Cursor
// authenticator and a file-based token store.
func newAuthManager() *sdkAuth.Manager {
	return sdkAuth.NewManager(sdkAuth.NewFileTokenStore(), sdkAuth.NewCursorAuthenticator())
}
