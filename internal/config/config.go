// Package config loads budgetbox settings from TOML, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvAPIURL    = "BUDGETBOX_API_URL"
	EnvJWTSecret = "BUDGETBOX_JWT_SECRET"
	EnvDataDir   = "BUDGETBOX_DATA_DIR"
	EnvDSN       = "DATABASE_URL"
	EnvAddr      = "PORT"
)

// Config holds all budgetbox configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Remote  RemoteConfig  `toml:"remote"`
	Sync    SyncConfig    `toml:"sync"`
	Display DisplayConfig `toml:"display"`
	Server  ServerConfig  `toml:"server"`
}

// GeneralConfig holds local storage settings.
type GeneralConfig struct {
	DataDir string `toml:"data_dir,omitempty"`
}

// RemoteConfig points the client at the remote store.
type RemoteConfig struct {
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// SyncConfig holds debounce and probe timings.
type SyncConfig struct {
	DebounceMS       int `toml:"debounce_ms"`
	PersistMS        int `toml:"persist_ms"`
	ProbeIntervalSec int `toml:"probe_interval_sec"`
}

// DisplayConfig holds rendering preferences.
type DisplayConfig struct {
	Currency string `toml:"currency"`
	Theme    string `toml:"theme"`
}

// ServerConfig configures the reference remote store.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	Driver         string   `toml:"driver"`
	DSN            string   `toml:"dsn,omitempty"`
	JWTSecret      string   `toml:"jwt_secret,omitempty"`
	SeedDemo       bool     `toml:"seed_demo"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			BaseURL:    "http://localhost:5000/api",
			TimeoutSec: 10,
		},
		Sync: SyncConfig{
			DebounceMS:       500,
			PersistMS:        250,
			ProbeIntervalSec: 15,
		},
		Display: DisplayConfig{
			Currency: "₹",
			Theme:    "flexoki-dark",
		},
		Server: ServerConfig{
			Addr:     ":5000",
			Driver:   "sqlite",
			SeedDemo: true,
		},
	}
}

// Debounce returns the edit debounce window.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// PersistDelay returns the snapshot write delay.
func (c Config) PersistDelay() time.Duration {
	return time.Duration(c.Sync.PersistMS) * time.Millisecond
}

// ProbeInterval returns the connectivity probe interval.
func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.Sync.ProbeIntervalSec) * time.Second
}

// Timeout returns the remote request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSec) * time.Second
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "budgetbox")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "budgetbox")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultDataDir returns the XDG-compliant data directory.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "budgetbox")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "budgetbox")
}

// DataDir returns the configured data directory or the default.
func (c Config) DataDir() string {
	if c.General.DataDir != "" {
		return c.General.DataDir
	}
	return DefaultDataDir()
}

// StatePath returns the client database path.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir(), "state.db")
}

// AgentPath returns the runtime state file of the local status daemon.
func (c Config) AgentPath() string {
	return filepath.Join(c.DataDir(), "budgetboxd.json")
}

// AgentLogPath returns the log file of a detached status daemon.
func (c Config) AgentLogPath() string {
	return filepath.Join(c.DataDir(), "budgetboxd.log")
}

// ServerDSN returns the server's database source, defaulting to a sqlite
// file in the data directory.
func (c Config) ServerDSN() string {
	if c.Server.DSN != "" {
		return c.Server.DSN
	}
	return filepath.Join(c.DataDir(), "server.db")
}

// Load reads the config file, returning defaults if it doesn't exist, then
// applies .env and environment overrides.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom is Load for an explicit file path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := LoadDotEnv(".env"); err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is the user's own config file
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		cfg.Server.DSN = v
		cfg.Server.Driver = "postgres"
	}
	if v := os.Getenv(EnvAddr); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.Server.Addr = ":" + v
		}
	}
}

// Save writes the config to path, creating its directory.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // user config path
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
