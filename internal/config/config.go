// Package config loads runtime settings with the precedence env vars >
// config file > defaults. A .env file in the working directory is folded
// into the environment before loading.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables when they are mapped
// onto config keys: FORMWEAVE_STORE__PATH becomes store.path.
const EnvPrefix = "FORMWEAVE_"

// Defaults.
const (
	DefaultDriver         = "sqlite"
	DefaultStorePath      = "formweave.db"
	DefaultMaxChangedRows = 100
	DefaultDupFieldPolicy = "skip"
)

// Store selects and addresses the backing database.
type Store struct {
	// Driver is "sqlite" or "postgres".
	Driver string `koanf:"driver"`

	// Path is the sqlite database file.
	Path string `koanf:"path"`

	// DSN is the postgres connection string.
	DSN string `koanf:"dsn"`
}

// Resolve tunes the resolution pipeline.
type Resolve struct {
	// MaxChangedRows caps the total rows one change-set may stage.
	MaxChangedRows int `koanf:"max_changed_rows"`

	// DuplicateFieldPolicy is "skip" or "fail".
	DuplicateFieldPolicy string `koanf:"duplicate_field_policy"`
}

// Settings is the full runtime configuration.
type Settings struct {
	Store   Store   `koanf:"store"`
	Resolve Resolve `koanf:"resolve"`
}

// Load reads settings from defaults, an optional YAML config file, and
// FORMWEAVE_-prefixed environment variables, in ascending precedence.
// An empty cfgFile skips the file layer.
func Load(cfgFile string) (*Settings, error) {
	// Missing .env is fine; only surface real read failures.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"store.driver":                   DefaultDriver,
		"store.path":                     DefaultStorePath,
		"store.dsn":                      "",
		"resolve.max_changed_rows":       DefaultMaxChangedRows,
		"resolve.duplicate_field_policy": DefaultDupFieldPolicy,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	// Double underscore separates nesting levels so key names may keep
	// their own underscores: FORMWEAVE_RESOLVE__MAX_CHANGED_ROWS maps to
	// resolve.max_changed_rows.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate rejects settings no command could run with.
func (s *Settings) Validate() error {
	switch s.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q, want sqlite or postgres", s.Store.Driver)
	}
	if s.Store.Driver == "postgres" && s.Store.DSN == "" {
		return fmt.Errorf("postgres driver requires store.dsn")
	}
	if s.Resolve.MaxChangedRows <= 0 {
		return fmt.Errorf("resolve.max_changed_rows must be positive, got %d", s.Resolve.MaxChangedRows)
	}
	switch s.Resolve.DuplicateFieldPolicy {
	case "skip", "fail":
	default:
		return fmt.Errorf("unknown duplicate field policy %q, want skip or fail", s.Resolve.DuplicateFieldPolicy)
	}
	return nil
}
