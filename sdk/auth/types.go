package auth

import (
	"context"
	"time"

	baseauth "github.com/router-for-me/cursor-login/internal/auth"
)

// Auth is a persisted login result.
type Auth struct {
	// ID uniquely identifies the record; for file stores it is the file name relative to the auth dir.
	ID string `json:"id"`
	// Provider is the provider key, always "cursor" for records produced here.
	Provider string `json:"provider"`
	// FileName is the relative or absolute path of the backing auth file.
	FileName string `json:"-"`
	// Storage holds the token persistence implementation used during login flows.
	Storage baseauth.TokenStorage `json:"-"`
	// Label is an optional human readable label.
	Label string `json:"label,omitempty"`
	// Attributes stores immutable details such as the resolved file path.
	Attributes map[string]string `json:"attributes,omitempty"`
	// Metadata mirrors the persisted JSON document.
	Metadata map[string]any `json:"metadata,omitempty"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Store abstracts persistence of auth records.
type Store interface {
	// List returns all auth records stored in the backend.
	List(ctx context.Context) ([]*Auth, error)
	// Save persists the provided auth record and returns where it was written.
	Save(ctx context.Context, auth *Auth) (string, error)
	// Delete removes the auth record identified by id.
	Delete(ctx context.Context, id string) error
}
