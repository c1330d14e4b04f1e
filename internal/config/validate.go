package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set (or %s)", EnvStorePath)
	}
	if c.Store.PrefsPath == "" {
		return errors.New("store.prefs_path must be set")
	}
	if c.Store.PrefsPath == c.Store.Path {
		return errors.New("store.prefs_path must differ from store.path")
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if c.Search.DebounceMillis < 0 {
		return errors.New("search.debounce_ms must be >= 0")
	}
	switch c.Seed.Description {
	case "none", "coin_flip":
	default:
		return fmt.Errorf("seed.description must be none or coin_flip, got %q", c.Seed.Description)
	}
	return c.validateLogging()
}

func (c *Config) validateRemote() error {
	u, err := url.Parse(c.Remote.URL)
	if err != nil {
		return fmt.Errorf("remote.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote.url must be http or https, got %q", c.Remote.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("remote.url has no host: %q", c.Remote.URL)
	}
	if c.Remote.MaxTries < 1 {
		return errors.New("remote.max_tries must be >= 1")
	}
	if c.Remote.TimeoutSeconds < 1 {
		return errors.New("remote.timeout_seconds must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
