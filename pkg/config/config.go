// Package config loads meshbool.yaml. Fields omitted from the file keep
// their defaults, so partial files are fine.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up by the CLI when --config is not given.
const FileName = "meshbool.yaml"

// Engine names accepted in the engine field.
const (
	EngineSdfx  = "sdfx"
	EngineCarve = "carve"
)

// Config is the root configuration.
type Config struct {
	Engine   string     `yaml:"engine"`
	Isolate  bool       `yaml:"isolate"`
	LogLevel string     `yaml:"log_level"`
	Weld     WeldConfig `yaml:"weld"`
	Copy     CopyConfig `yaml:"copy"`
	Sdfx     SdfxConfig `yaml:"sdfx"`
}

// WeldConfig controls the pre-pass applied to both inputs before encoding.
// Angle is in radians; π merges every coincident vertex regardless of the
// surrounding face normals.
type WeldConfig struct {
	Angle    float64 `yaml:"angle"`
	Distance float64 `yaml:"distance"`
}

// CopyConfig controls the result copy-out. Arrays shorter than Threshold
// are copied on the calling goroutine.
type CopyConfig struct {
	Workers   int `yaml:"workers"`
	Threshold int `yaml:"threshold"`
}

// SdfxConfig tunes the pure-Go engine. Resolution is the marching cubes
// cell count along the longest axis.
type SdfxConfig struct {
	Resolution int `yaml:"resolution"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine:   EngineSdfx,
		LogLevel: "info",
		Weld: WeldConfig{
			Angle:    math.Pi,
			Distance: 0,
		},
		Copy: CopyConfig{
			Workers:   4,
			Threshold: 1 << 16,
		},
		Sdfx: SdfxConfig{
			Resolution: 48,
		},
	}
}

// Load reads a YAML config file on top of Default().
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cleanPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns Default() otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineSdfx, EngineCarve:
	default:
		return fmt.Errorf("unknown engine %q (want %q or %q)", c.Engine, EngineSdfx, EngineCarve)
	}
	if c.Weld.Angle < 0 || c.Weld.Angle > math.Pi {
		return fmt.Errorf("weld.angle must be within [0, π], got %g", c.Weld.Angle)
	}
	if c.Weld.Distance < 0 {
		return fmt.Errorf("weld.distance must be non-negative, got %g", c.Weld.Distance)
	}
	if c.Copy.Workers < 1 {
		return fmt.Errorf("copy.workers must be at least 1, got %d", c.Copy.Workers)
	}
	if c.Copy.Threshold < 1 {
		return fmt.Errorf("copy.threshold must be at least 1, got %d", c.Copy.Threshold)
	}
	if c.Sdfx.Resolution < 4 {
		return fmt.Errorf("sdfx.resolution must be at least 4, got %d", c.Sdfx.Resolution)
	}
	return nil
}
