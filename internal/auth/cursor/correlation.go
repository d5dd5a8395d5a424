package cursor

import "github.com/google/uuid"

// GenerateCorrelationID returns a random UUID v4 binding one login attempt to its poll requests.
// The id is a correlation token, not a secret.
func GenerateCorrelationID() string {
	return uuid.NewString()
}
