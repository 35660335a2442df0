package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvPasscode = "MAINTDASH_PASSCODE"
	EnvDSN      = "MAINTDASH_DSN"
	EnvRESTKey  = "MAINTDASH_REST_KEY"
)

// Backend drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverREST     = "rest"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LogConfig selects log verbosity and encoding ("console" or "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// RESTConfig points at a PostgREST-style endpoint.
type RESTConfig struct {
	URL    string `yaml:"url" json:"url"`
	APIKey string `yaml:"api_key" json:"-"`
}

// BackendConfig chooses where maintenance rows live.
type BackendConfig struct {
	// Driver is one of "memory", "postgres", "sqlite", "rest".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the database connection string for postgres/sqlite.
	DSN string `yaml:"dsn" json:"-"`
	// Table is the logical table name.
	Table string     `yaml:"table" json:"table"`
	REST  RESTConfig `yaml:"rest" json:"rest"`
}

// NotifyConfig enables the redis change feed when RedisAddr is set.
type NotifyConfig struct {
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	Stream    string `yaml:"stream" json:"stream"`
}

type ICSExportConfig struct {
	// Name is the calendar name written as X-WR-CALNAME.
	Name string `yaml:"name" json:"name"`
}

// ImportSource is one ICS feed pulled by "maintdash import".
type ImportSource struct {
	URL string `yaml:"url" json:"url"`
	// ID is used for the fetch cache file name and in logs.
	ID string `yaml:"id" json:"id"`
	// Name is the fallback system for events without LOCATION.
	Name string `yaml:"name" json:"name"`
}

type ImportConfig struct {
	Sources []ImportSource `yaml:"sources" json:"sources"`
	// HorizonDays bounds recurrence expansion, counted from now.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// CacheDir holds ETag/Last-Modified metadata and bodies between runs.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

type CaptureConfig struct {
	Width      int `yaml:"width" json:"width"`
	Height     int `yaml:"height" json:"height"`
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that decides calendar days (e.g. "Asia/Jakarta").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale selects day labels: "id" or "en".
	Locale string `yaml:"locale" json:"locale"`

	// RefreshCron is a cron-style schedule string (e.g. "*/10 * * * *")
	// used for periodic reloads.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Passcode unlocks editing in the UI. It is a deterrent, not access control.
	Passcode string `yaml:"passcode" json:"-"`

	Log       LogConfig       `yaml:"log" json:"log"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`
	ICSExport ICSExportConfig `yaml:"ics_export" json:"ics_export"`
	Import    ImportConfig    `yaml:"import" json:"import"`
	Capture   CaptureConfig   `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Jakarta"
	}
	switch c.Locale {
	case "id", "en":
	default:
		c.Locale = "id"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/10 * * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	c.Backend.Driver = strings.ToLower(c.Backend.Driver)
	switch c.Backend.Driver {
	case DriverMemory, DriverPostgres, DriverSQLite, DriverREST:
	default:
		c.Backend.Driver = DriverMemory
	}
	if c.Backend.Table == "" {
		c.Backend.Table = "maintenance_events"
	}

	if c.Notify.Stream == "" {
		c.Notify.Stream = "maintdash:changes"
	}
	if c.ICSExport.Name == "" {
		c.ICSExport.Name = "Maintenance"
	}
	if c.Import.Sources == nil {
		c.Import.Sources = []ImportSource{}
	}
	if c.Import.HorizonDays <= 0 {
		c.Import.HorizonDays = 30
	}
	if c.Import.CacheDir == "" {
		c.Import.CacheDir = filepath.Join(os.TempDir(), "maintdash-ics")
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 900
	}
	if c.Capture.TimeoutSec <= 0 {
		c.Capture.TimeoutSec = 30
	}
}

// ApplyEnv overrides secrets from the environment when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPasscode); v != "" {
		c.Passcode = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		c.Backend.DSN = v
	}
	if v := os.Getenv(EnvRESTKey); v != "" {
		c.Backend.REST.APIKey = v
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied after the file is read and are never
// written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".maintdash-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
