package xauth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// PendingAuth is the state and verifier issued with an authorization URL,
// held until the provider redirects back. The verifier never leaves this
// process except in the final exchange request body.
type PendingAuth struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// SavePending writes the pending auth to path with owner-only permissions.
func SavePending(path string, p PendingAuth) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadPending reads a previously saved pending auth.
func LoadPending(path string) (PendingAuth, error) {
	var p PendingAuth
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	if p.State == "" || p.Verifier == "" {
		return p, errors.New("pending auth file is incomplete")
	}
	return p, nil
}

// RemovePending deletes the pending auth file once the flow completes.
func RemovePending(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
