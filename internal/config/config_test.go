package config

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flockrank.yaml")
	cfg := Default()
	cfg.Account.ID = "me"
	cfg.Sync.PostLimit = 25
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Account.ID != "me" || got.Sync.PostLimit != 25 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Provider.BaseURL == "" {
		t.Fatal("provider base url lost")
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_CLIENT_ID", "envcid")
	cfg := Default()
	cfg.ResolveEnv()
	if cfg.OAuth.ClientID != "envcid" {
		t.Fatalf("client id = %q", cfg.OAuth.ClientID)
	}
}
