// Package cursor implements the Cursor deep-login handshake: PKCE pair and
// correlation id generation, the poll transport, and the orchestrator that
// opens the consent page and polls until an access token is issued.
package cursor

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"golang.org/x/oauth2"
)

const (
	// verifierEntropyBytes is the number of random bytes behind a code verifier.
	verifierEntropyBytes = 32
	// verifierLength is the fixed length of an encoded code verifier.
	verifierLength = 43
)

// PKCECodes holds a PKCE verifier and its S256 challenge.
type PKCECodes struct {
	// CodeVerifier is the secret proof presented to the poll endpoint.
	CodeVerifier string `json:"code_verifier"`
	// CodeChallenge is base64url(SHA-256(CodeVerifier)) without padding.
	CodeChallenge string `json:"code_challenge"`
}

// GeneratePKCECodes generates a new pair of PKCE codes from the system CSPRNG.
// The verifier is 43 characters of unpadded URL-safe base64, the challenge is
// its S256 digest as described in RFC 7636.
func GeneratePKCECodes() (*PKCECodes, error) {
	return generatePKCECodes(rand.Reader)
}

func generatePKCECodes(random io.Reader) (*PKCECodes, error) {
	entropy := make([]byte, verifierEntropyBytes)
	if _, err := io.ReadFull(random, entropy); err != nil {
		return nil, NewAuthenticationError(ErrPKCEGenerationFailed, err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(entropy)
	if len(verifier) > verifierLength {
		verifier = verifier[:verifierLength]
	}

	return &PKCECodes{
		CodeVerifier:  verifier,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}
