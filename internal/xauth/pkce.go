package xauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// NewVerifier returns a fresh PKCE code verifier (32 random bytes, hex).
func NewVerifier() string { return randomHex(32) }

// NewState returns a fresh CSRF state parameter (16 random bytes, hex).
func NewState() string { return randomHex(16) }

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// CodeChallenge derives the S256 challenge for a verifier:
// base64url (no padding) of SHA-256(verifier).
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyState compares the callback state against the issued one.
// Must pass before any code exchange is attempted.
func VerifyState(issued, got string) error {
	if issued == "" || subtle.ConstantTimeCompare([]byte(issued), []byte(got)) != 1 {
		return &AuthError{Kind: StateMismatch}
	}
	return nil
}
