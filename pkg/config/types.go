package config

import (
	"fmt"
	"sort"
	"strconv"
)

// Config represents the persistent flowcanvas configuration stored as
// config.toml in the .flowcanvas/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Server  ServerConfig  `toml:"server"`
	Model   ModelConfig   `toml:"model"`
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ModelConfig holds the upstream inference settings.
// The API key deliberately has no config-file representation; it is only
// ever read from the environment (FLOWCANVAS_MODEL_API_KEY).
type ModelConfig struct {
	BaseURL   string `toml:"base_url,omitempty"`
	Name      string `toml:"name,omitempty"`
	MaxRounds int    `toml:"max_rounds,omitempty"`
	APIKey    string `toml:"-"`
}

// StorageConfig holds usage ledger settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"model.base_url": {
		get: func(c *Config) string { return c.Model.BaseURL },
		set: func(c *Config, v string) error { c.Model.BaseURL = v; return nil },
	},
	"model.name": {
		get: func(c *Config) string { return c.Model.Name },
		set: func(c *Config, v string) error { c.Model.Name = v; return nil },
	},
	"model.max_rounds": {
		get: func(c *Config) string { return strconv.Itoa(c.Model.MaxRounds) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("model.max_rounds must be an integer: %w", err)
			}
			c.Model.MaxRounds = n
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidConfigKey reports whether key names a supported config key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// Get returns the value of a dotted config key.
func (c *Config) Get(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return info.get(c), nil
}

// Set assigns a dotted config key.
func (c *Config) Set(key, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	return info.set(c, value)
}
