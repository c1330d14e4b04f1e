package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Store locates the persistent files.
type Store struct {
	Path      string `toml:"path"`
	PrefsPath string `toml:"prefs_path"`
}

// Remote configures the sample-data endpoint.
type Remote struct {
	URL            string `toml:"url"`
	MaxTries       int    `toml:"max_tries"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Search configures interactive search.
type Search struct {
	DebounceMillis int `toml:"debounce_ms"`
}

// Seed configures how fetched items become records.
type Seed struct {
	// Description is "none" or "coin_flip".
	Description string `toml:"description"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values.
type Config struct {
	Store   Store   `toml:"store"`
	Remote  Remote  `toml:"remote"`
	Search  Search  `toml:"search"`
	Seed    Seed    `toml:"seed"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path, or the default location when path is
// empty. A missing file is not an error: defaults and environment overrides
// still apply. It returns the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// RemoteTimeout returns the per-request HTTP timeout.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// SearchDebounce returns the delay applied to interactive search.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.Search.DebounceMillis) * time.Millisecond
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config %s is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(EnvStorePath); ok && strings.TrimSpace(value) != "" {
		c.Store.Path = value
	}
	if value, ok := os.LookupEnv(EnvRemoteURL); ok && strings.TrimSpace(value) != "" {
		c.Remote.URL = value
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Store.Path, err = expandPath(strings.TrimSpace(c.Store.Path)); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	if strings.TrimSpace(c.Store.PrefsPath) == "" && c.Store.Path != "" {
		c.Store.PrefsPath = filepath.Join(filepath.Dir(c.Store.Path), "prefs.yaml")
	}
	if c.Store.PrefsPath, err = expandPath(strings.TrimSpace(c.Store.PrefsPath)); err != nil {
		return fmt.Errorf("store.prefs_path: %w", err)
	}

	c.Remote.URL = strings.TrimSpace(c.Remote.URL)
	if c.Remote.URL == "" {
		c.Remote.URL = defaultRemoteURL
	}
	c.Seed.Description = strings.ToLower(strings.TrimSpace(c.Seed.Description))
	if c.Seed.Description == "" {
		c.Seed.Description = defaultSeedDescription
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
