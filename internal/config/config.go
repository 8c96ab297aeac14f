package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures provider endpoints, OAuth app settings, sync tuning, and storage.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Provider ProviderConfig `yaml:"provider"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Sync     SyncConfig     `yaml:"sync"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	// Demo seeds a canned snapshot instead of talking to the platform.
	// Consumed only at the composition boundary, never inside the engine.
	Demo bool `yaml:"demo"`
}

type AccountConfig struct {
	// Local account identifier scoping credentials and snapshots.
	ID string `yaml:"id"`
}

type ProviderConfig struct {
	BaseURL      string `yaml:"baseUrl"`
	AuthorizeURL string `yaml:"authorizeUrl"`
	TokenURL     string `yaml:"tokenUrl"`
}

type OAuthConfig struct {
	// If empty, read from env X_CLIENT_ID / X_CLIENT_SECRET
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	RedirectURI  string   `yaml:"redirectUri"`
	Scopes       []string `yaml:"scopes"`
}

type SyncConfig struct {
	// Most recent posts to fan out over
	PostLimit int `yaml:"postLimit"`
	// Concurrent per-post engagement fetches
	FanOut int `yaml:"fanOut"`
	// Overall timeout for one sync run, seconds; 0 disables
	TimeoutSec int `yaml:"timeoutSec"`
}

func (s SyncConfig) Timeout() time.Duration { return time.Duration(s.TimeoutSec) * time.Second }

type StorageConfig struct {
	// SQLite path; empty keeps everything in process memory
	DBPath string `yaml:"dbPath"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{ID: "default"},
		Provider: ProviderConfig{
			BaseURL:      "https://api.twitter.com/2",
			AuthorizeURL: "https://twitter.com/i/oauth2/authorize",
			TokenURL:     "https://api.twitter.com/2/oauth2/token",
		},
		OAuth: OAuthConfig{
			RedirectURI: "http://localhost:3000/callback",
			Scopes:      []string{"tweet.read", "users.read", "follows.read", "offline.access"},
		},
		Sync:    SyncConfig{PostLimit: 100, FanOut: 6, TimeoutSec: 600},
		Storage: StorageConfig{DBPath: ""},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.OAuth.ClientID == "" {
		c.OAuth.ClientID = os.Getenv("X_CLIENT_ID")
	}
	if c.OAuth.ClientSecret == "" {
		c.OAuth.ClientSecret = os.Getenv("X_CLIENT_SECRET")
	}
	if c.OAuth.RedirectURI == "" {
		c.OAuth.RedirectURI = os.Getenv("X_REDIRECT_URI")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
