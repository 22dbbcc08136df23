package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Default endpoints match a locally running quickchat backend.
const (
	DefaultAPIBaseURL = "http://localhost:5000/api"
	DefaultSocketURL  = "ws://localhost:5000/socket"
	DefaultDebounceMS = 500
)

// Config represents the global ~/.qc/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	APIBaseURL     string `toml:"api_base_url"`
	SocketURL      string `toml:"socket_url"`
	DebounceMS     int    `toml:"debounce_ms"`
	SoundEnabled   bool   `toml:"sound_enabled"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		APIBaseURL:   DefaultAPIBaseURL,
		SocketURL:    DefaultSocketURL,
		DebounceMS:   DefaultDebounceMS,
		SoundEnabled: true,
	}
}

// Load reads config from the given path, fills unset fields with
// defaults and applies environment overrides. Returns an error if the
// file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields defaults (with
// environment overrides) instead of an error.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

// applyEnv overrides config values from QC_* environment variables,
// typically populated via a .env file.
func (c *Config) applyEnv() {
	if v := os.Getenv("QC_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("QC_SOCKET_URL"); v != "" {
		c.SocketURL = v
	}
	if v := os.Getenv("QC_SESSION"); v != "" {
		c.DefaultSession = v
	}
	if v := os.Getenv("QC_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.DebounceMS = ms
		}
	}
}

func (c *Config) normalize() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.SocketURL == "" {
		c.SocketURL = DefaultSocketURL
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = DefaultDebounceMS
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
