// Package config holds runtime configuration: defaults, the optional YAML
// file, environment overrides and validation. CLI flags are applied on top by
// cmd/gltfpress.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/gltfpress/internal/preset"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "GLTFPRESS_"

// Config holds all runtime settings. It is populated by [DefaultConfig], then
// overlaid by [LoadFile], [LoadEnv] and CLI flags, and passed by pointer to
// packages that need it.
type Config struct {
	// Binary discovery.
	GltfpackPath  string `yaml:"gltfpack"`        // Explicit binary; replaces the search tiers.
	DevBinaryPath string `yaml:"dev_binary_path"` // Default: "Resources/Binaries/gltfpack".

	// Optimization.
	Preset       preset.Name    `yaml:"preset"`        // Default: "balanced".
	Custom       *preset.Config `yaml:"custom"`        // Used when Preset is "custom".
	OutputSuffix string         `yaml:"output_suffix"` // Default: "_optimized".
	Overwrite    bool           `yaml:"overwrite"`     // Replace existing outputs instead of renaming.

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	ColorMode ColorMode `yaml:"color"`    // Default: "auto".
	LogFile   string    `yaml:"log_file"` // Optional log file path.

	// Run records.
	HistoryDB   string `yaml:"history_db"`   // SQLite run log; empty disables it.
	MetricsFile string `yaml:"metrics_file"` // Prometheus textfile; empty disables it.

	// Temp cleanup.
	TempMaxAge time.Duration `yaml:"temp_max_age"` // Default: 1h.
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		DevBinaryPath: "Resources/Binaries/gltfpack",
		Preset:        preset.Balanced,
		OutputSuffix:  "_optimized",
		ColorMode:     ColorAuto,
		TempMaxAge:    time.Hour,
	}
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func LoadFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// A partial custom block is filled from the balanced values.
	var probe struct {
		Custom *yaml.Node `yaml:"custom"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if probe.Custom != nil && c.Custom == nil {
		base := preset.Default()
		c.Custom = &base
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads the given .env files (missing files are skipped; variables
// already set in the process win) and then applies GLTFPRESS_* variables.
func LoadEnv(c *Config, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return ApplyEnv(c, os.LookupEnv)
}

// ApplyEnv overlays GLTFPRESS_* variables obtained through lookup onto c.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("GLTFPACK", &c.GltfpackPath)
	str("DEV_BINARY", &c.DevBinaryPath)
	str("OUTPUT_SUFFIX", &c.OutputSuffix)
	str("LOG_FILE", &c.LogFile)
	str("HISTORY_DB", &c.HistoryDB)
	str("METRICS_FILE", &c.MetricsFile)

	var p, color string
	str("PRESET", &p)
	if p != "" {
		c.Preset = preset.Name(strings.ToLower(p))
	}
	str("COLOR", &color)
	if color != "" {
		c.ColorMode = ColorMode(strings.ToLower(color))
	}

	if err := boolean("VERBOSE", &c.Verbose); err != nil {
		return err
	}
	if err := boolean("OVERWRITE", &c.Overwrite); err != nil {
		return err
	}

	var age string
	str("TEMP_MAX_AGE", &age)
	if age != "" {
		d, err := time.ParseDuration(age)
		if err != nil {
			return fmt.Errorf("%sTEMP_MAX_AGE: %w", EnvPrefix, err)
		}
		c.TempMaxAge = d
	}
	return nil
}

// Validate checks enum fields and the custom optimization block.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	name, err := preset.ParseName(string(c.Preset))
	if err != nil {
		return err
	}
	c.Preset = name

	if c.OutputSuffix == "" && !c.Overwrite {
		return errors.New("output suffix must not be empty")
	}
	if c.TempMaxAge <= 0 {
		return errors.New("temp max age must be positive")
	}
	if c.Custom != nil {
		if err := c.Custom.Validate(); err != nil {
			return fmt.Errorf("custom block: %w", err)
		}
	}
	return nil
}

// Optimization resolves the preset into the settings handed to gltfpack. The
// custom preset uses the file's custom block when one is present.
func (c *Config) Optimization() (preset.Config, error) {
	if c.Preset == preset.Custom && c.Custom != nil {
		oc := *c.Custom
		oc.Name = preset.Custom.DisplayName()
		oc.Preset = preset.Custom
		return oc, nil
	}
	return preset.ForPreset(c.Preset)
}
