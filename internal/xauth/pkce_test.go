package xauth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestCodeChallengeS256(t *testing.T) {
	sum := sha256.Sum256([]byte("abc123"))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	got := CodeChallenge("abc123")
	if got != want {
		t.Fatalf("challenge mismatch: got %q want %q", got, want)
	}
	if strings.ContainsAny(got, "+/=") {
		t.Fatalf("challenge must be base64url without padding, got %q", got)
	}
}

func TestVerifyState(t *testing.T) {
	if err := VerifyState("abc", "abc"); err != nil {
		t.Fatalf("matching state rejected: %v", err)
	}
	err := VerifyState("abc", "xyz")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != StateMismatch {
		t.Fatalf("expected StateMismatch, got %v", err)
	}
	if err := VerifyState("", ""); err == nil {
		t.Fatal("empty issued state must not verify")
	}
}

func TestNewStateAndVerifierEntropy(t *testing.T) {
	if NewState() == NewState() {
		t.Fatal("states must not repeat")
	}
	if len(NewVerifier()) < 43 {
		t.Fatalf("verifier too short: %d", len(NewVerifier()))
	}
}
