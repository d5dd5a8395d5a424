// Package auth holds the storage contract shared by provider login packages.
package auth

// TokenStorage persists a provider's token record to a file.
type TokenStorage interface {
	// SaveTokenToFile persists the token record to authFilePath.
	SaveTokenToFile(authFilePath string) error
}
