package ic

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config controls the API call fast path. Defaults come from the
// environment and can be overridden by a TOML file.
type Config struct {
	// EnableAPICalls allows accessor sites to call host callbacks directly
	EnableAPICalls bool `toml:"enable-api-calls"`

	// MaxPolymorphicEntries controls how many shapes a site tracks before going megamorphic.
	// Validate requires 1..8; NewAccessorSite uses 4 for anything else.
	MaxPolymorphicEntries int `toml:"max-polymorphic-entries"`

	// TraceFilter is an ECMAScript regex matched against target names; empty traces all
	TraceFilter string `toml:"trace-filter"`
}

type configFile struct {
	IC *Config `toml:"ic"`
}

// DefaultConfig reads PASERATI_IC_API_CALLS, PASERATI_MAX_POLY_ENTRIES and
// PASERATI_IC_TRACE.
func DefaultConfig() Config {
	return Config{
		EnableAPICalls:        getEnvBool("PASERATI_IC_API_CALLS", true),
		MaxPolymorphicEntries: getEnvInt("PASERATI_MAX_POLY_ENTRIES", 4),
		TraceFilter:           os.Getenv("PASERATI_IC_TRACE"),
	}
}

// LoadConfig overlays the [ic] table of a TOML file on the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	file := configFile{IC: &cfg}
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and compiles the trace filter.
func (c Config) Validate() error {
	if c.MaxPolymorphicEntries < 1 || c.MaxPolymorphicEntries > maxSiteEntries {
		return fmt.Errorf("max-polymorphic-entries must be between 1 and %d, got %d", maxSiteEntries, c.MaxPolymorphicEntries)
	}
	if _, err := compileTraceFilter(c.TraceFilter); err != nil {
		return err
	}
	return nil
}

// Apply validates the config and installs its trace filter.
func (c Config) Apply() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return SetTraceFilter(c.TraceFilter)
}

// getEnvBool reads a boolean environment variable with a default value
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvInt reads an integer environment variable with a default value
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
