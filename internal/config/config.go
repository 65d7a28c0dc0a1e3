package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that unmarshals from TOML strings like "15s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	if parsed <= 0 {
		return fmt.Errorf("duration %q must be positive", string(text))
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type BackendConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type SupervisorConfig struct {
	URL   string `toml:"url"`
	Route string `toml:"route"`
}

type BridgeConfig struct {
	Listen string `toml:"listen"`
}

type IntervalsConfig struct {
	DomainCacheTTL Duration `toml:"domain_cache_ttl"`
	RowsRefresh    Duration `toml:"rows_refresh"`
	Flush          Duration `toml:"flush"`
	RolloverCheck  Duration `toml:"rollover_check"`
}

type StorageConfig struct {
	SessionPath string `toml:"session_path"`
	JournalPath string `toml:"journal_path"`
}

type NotifyConfig struct {
	Enabled *bool `toml:"enabled"`
}

type Config struct {
	Backend        BackendConfig    `toml:"backend"`
	Supervisor     SupervisorConfig `toml:"supervisor"`
	Bridge         BridgeConfig     `toml:"bridge"`
	Intervals      IntervalsConfig  `toml:"intervals"`
	Storage        StorageConfig    `toml:"storage"`
	Notify         NotifyConfig     `toml:"notify"`
	TimeoutMinutes int              `toml:"timeout_minutes"`
}

// SetDefault fills in every unset field with its built-in default.
func (c *Config) SetDefault() {
	if c.Supervisor.URL == "" {
		c.Supervisor.URL = "http://localhost:5173"
	}
	if c.Supervisor.Route == "" {
		c.Supervisor.Route = "/supervisor"
	}
	if c.Bridge.Listen == "" {
		c.Bridge.Listen = "127.0.0.1:8972"
	}
	if c.Intervals.DomainCacheTTL == 0 {
		c.Intervals.DomainCacheTTL = Duration(15 * time.Second)
	}
	if c.Intervals.RowsRefresh == 0 {
		c.Intervals.RowsRefresh = Duration(30 * time.Second)
	}
	if c.Intervals.Flush == 0 {
		c.Intervals.Flush = Duration(2 * time.Minute)
	}
	if c.Intervals.RolloverCheck == 0 {
		c.Intervals.RolloverCheck = Duration(time.Minute)
	}
	if c.Storage.SessionPath == "" {
		c.Storage.SessionPath = filepath.Join(stateDir(), "session.json")
	}
	if c.Storage.JournalPath == "" {
		c.Storage.JournalPath = filepath.Join(stateDir(), "journal.db")
	}
	if c.Notify.Enabled == nil {
		enabled := true
		c.Notify.Enabled = &enabled
	}
	if c.TimeoutMinutes <= 0 {
		c.TimeoutMinutes = 5
	}
}

// SupervisorPage is the full URL of the page hard blocks redirect to.
func (c *Config) SupervisorPage() string {
	return c.Supervisor.URL + c.Supervisor.Route
}

// DefaultPath is the per-user config location the daemon and CLI fall
// back to when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "tabwarden", "config.toml")
}

func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "tabwarden")
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadFromBytes(data)
}

func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefault()
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend.url is required")
	}
	return &cfg, nil
}
