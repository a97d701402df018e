package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Tiliavir/diary-migrate/internal/images"
	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/nideriji"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment variables that override the account section.
const (
	EnvEmail    = "DIARY_MIGRATE_EMAIL"
	EnvPassword = "DIARY_MIGRATE_PASSWORD"
	// EnvHome relocates the state directory (default ~/.diary-migrate).
	EnvHome = "DIARY_MIGRATE_HOME"
)

// Source describes the exported archive on disk.
type Source struct {
	BaseDir              string            `toml:"base_dir"`
	Encoding             string            `toml:"encoding"`
	ImageFolder          string            `toml:"image_folder"`
	EntryOrder           string            `toml:"entry_order"`
	ImageFolderOverrides map[string]string `toml:"image_folder_overrides"`
}

// Account holds the diary service credentials.
type Account struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// Migrate controls a migration run.
type Migrate struct {
	StartDate     string `toml:"start_date"`
	EndDate       string `toml:"end_date"`
	DryRun        bool   `toml:"dry_run"`
	UploadDelayMS int    `toml:"upload_delay_ms"`
	WriteDelayMS  int    `toml:"write_delay_ms"`
}

// API locates the diary service.
type API struct {
	BaseURL              string `toml:"base_url"`
	UploadURL            string `toml:"upload_url"`
	UserAgent            string `toml:"user_agent"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	UploadTimeoutSeconds int    `toml:"upload_timeout_seconds"`
}

// Logging configures log output.
type Logging struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Ledger configures the local run history.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config is the root configuration, stored in ~/.diary-migrate/config.toml.
type Config struct {
	Source  Source  `toml:"source"`
	Account Account `toml:"account"`
	Migrate Migrate `toml:"migrate"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`
	Ledger  Ledger  `toml:"ledger"`
}

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	return Config{
		Source: Source{
			BaseDir:              "我的动态",
			Encoding:             "utf-8",
			ImageFolder:          images.DefaultFolder,
			EntryOrder:           journal.OrderFile,
			ImageFolderOverrides: map[string]string{"2022": "图片＆视频"},
		},
		Migrate: Migrate{
			UploadDelayMS: 500,
			WriteDelayMS:  1000,
		},
		API: API{
			BaseURL:              nideriji.DefaultBaseURL,
			UploadURL:            nideriji.DefaultUploadURL,
			UserAgent:            nideriji.DefaultUserAgent,
			TimeoutSeconds:       15,
			UploadTimeoutSeconds: 30,
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Ledger: Ledger{
			Enabled: true,
			Path:    "ledger.db",
		},
	}
}

// StateDir returns the directory for config, ledger, lock and logs.
func StateDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".diary-migrate"), nil
}

// DefaultPath returns the path to ~/.diary-migrate/config.toml.
func DefaultPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the default config file, creating it from the annotated sample
// on first run.
func Load() (Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
// Values absent from the file keep their defaults; environment variables
// override the account section.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		// The file's override table replaces the default one instead of
		// merging into it.
		cfg.Source.ImageFolderOverrides = nil
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Account.Email = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Account.Password = v
	}
}

func (c *Config) normalize() {
	d := Default()
	c.Source.EntryOrder = strings.ToLower(strings.TrimSpace(c.Source.EntryOrder))
	if c.Source.EntryOrder == "" {
		c.Source.EntryOrder = d.Source.EntryOrder
	}
	if c.Source.ImageFolderOverrides == nil {
		c.Source.ImageFolderOverrides = d.Source.ImageFolderOverrides
	}
	if c.Source.ImageFolder == "" {
		c.Source.ImageFolder = d.Source.ImageFolder
	}
	if c.Source.Encoding == "" {
		c.Source.Encoding = d.Source.Encoding
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.UploadURL == "" {
		c.API.UploadURL = d.API.UploadURL
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = d.API.UserAgent
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if c.API.UploadTimeoutSeconds <= 0 {
		c.API.UploadTimeoutSeconds = d.API.UploadTimeoutSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = d.Ledger.Path
	}
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.BaseDir) == "" {
		return errors.New("source.base_dir must not be empty")
	}
	if c.Source.EntryOrder != journal.OrderFile && c.Source.EntryOrder != journal.OrderTime {
		return fmt.Errorf("source.entry_order: unsupported value %q (want %q or %q)", c.Source.EntryOrder, journal.OrderFile, journal.OrderTime)
	}
	if c.Migrate.UploadDelayMS < 0 || c.Migrate.WriteDelayMS < 0 {
		return errors.New("migrate delays must not be negative")
	}
	if _, err := c.Window(); err != nil {
		return fmt.Errorf("migrate window: %w", err)
	}
	return nil
}

// Window returns the configured date window.
func (c Config) Window() (timecalc.Window, error) {
	return timecalc.ParseWindow(c.Migrate.StartDate, c.Migrate.EndDate)
}

// UploadDelay is the pause after each image upload.
func (c Config) UploadDelay() time.Duration {
	return time.Duration(c.Migrate.UploadDelayMS) * time.Millisecond
}

// WriteDelay is the pause after each day.
func (c Config) WriteDelay() time.Duration {
	return time.Duration(c.Migrate.WriteDelayMS) * time.Millisecond
}

// ClientOptions maps the api section onto nideriji client options.
func (c Config) ClientOptions() nideriji.Options {
	return nideriji.Options{
		BaseURL:       c.API.BaseURL,
		UploadURL:     c.API.UploadURL,
		UserAgent:     c.API.UserAgent,
		Timeout:       time.Duration(c.API.TimeoutSeconds) * time.Second,
		UploadTimeout: time.Duration(c.API.UploadTimeoutSeconds) * time.Second,
	}
}

// HasCredentials reports whether both account fields are set.
func (c Config) HasCredentials() bool {
	return c.Account.Email != "" && c.Account.Password != ""
}

// StatePath resolves p relative to the state directory unless it is absolute.
func StatePath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// writeDefault creates the config directory and writes the annotated sample.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
