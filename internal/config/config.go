// Package config loads the run configuration from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/cmsync/internal/locale"
	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/placeholder"
)

// DefaultFile is the config file picked up from the working directory
// when no path is given.
const DefaultFile = "cmsync.toml"

// Config is the run configuration.
type Config struct {
	Database string         `toml:"database"`
	LogLevel string         `toml:"log_level"`
	Scope    ScopeConfig    `toml:"scope"`
	Resolver ResolverConfig `toml:"resolver"`
}

// ScopeConfig identifies the tenant scope content is reconciled into.
type ScopeConfig struct {
	ID            int64  `toml:"id"`
	CompanyID     int64  `toml:"company_id"`
	UserID        int64  `toml:"user_id"`
	Name          string `toml:"name"`
	DefaultLocale string `toml:"default_locale"`
}

// ResolverConfig tunes placeholder expansion.
type ResolverConfig struct {
	MaxPasses int `toml:"max_passes"`
}

// Default returns the configuration used when no file is present. Scope
// ids have no default and must be set by file or flag.
func Default() Config {
	return Config{
		Database: "cmsync.db",
		LogLevel: "info",
		Scope: ScopeConfig{
			Name:          "Guest",
			DefaultLocale: "en_US",
		},
		Resolver: ResolverConfig{MaxPasses: placeholder.DefaultMaxPasses},
	}
}

// Load reads the TOML file at path over the defaults. Unknown keys are
// rejected. The result is not validated; call Validate once flag
// overrides are applied.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes TOML data over the defaults. name is used in errors only.
func Parse(name string, data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return Config{}, fmt.Errorf("config parse failed (%s): unknown keys:\n%s", name, serr.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("config parse failed (%s:%d:%d): %w", name, row, col, err)
		}
		return Config{}, fmt.Errorf("config parse failed (%s): %w", name, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDefault loads path when set, otherwise DefaultFile if it exists,
// otherwise the defaults.
func LoadDefault(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return Load(DefaultFile)
	}
	return Default(), nil
}

// applyDefaults restores defaults for keys set to empty values.
func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Database) == "" {
		c.Database = def.Database
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = def.LogLevel
	}
	if strings.TrimSpace(c.Scope.Name) == "" {
		c.Scope.Name = def.Scope.Name
	}
	if strings.TrimSpace(c.Scope.DefaultLocale) == "" {
		c.Scope.DefaultLocale = def.Scope.DefaultLocale
	}
	if c.Resolver.MaxPasses == 0 {
		c.Resolver.MaxPasses = def.Resolver.MaxPasses
	}
}

// Validate checks the configuration is complete.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("config missing database")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Scope.ID <= 0 {
		return fmt.Errorf("scope.id must be positive, got %d", c.Scope.ID)
	}
	if c.Scope.CompanyID <= 0 {
		return fmt.Errorf("scope.company_id must be positive, got %d", c.Scope.CompanyID)
	}
	if c.Scope.UserID <= 0 {
		return fmt.Errorf("scope.user_id must be positive, got %d", c.Scope.UserID)
	}
	if _, err := locale.Canonical(c.Scope.DefaultLocale); err != nil {
		return fmt.Errorf("scope.default_locale: %w", err)
	}
	if c.Resolver.MaxPasses < 0 {
		return fmt.Errorf("resolver.max_passes must not be negative, got %d", c.Resolver.MaxPasses)
	}
	return nil
}

// ModelScope returns the scope the run operates in.
func (c Config) ModelScope() model.Scope {
	return model.Scope{ID: c.Scope.ID, CompanyID: c.Scope.CompanyID, UserID: c.Scope.UserID}
}

// Level returns the configured log level, Info if unparseable.
func (c Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses debug, info, warn or error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", s)
	}
	return level, nil
}
