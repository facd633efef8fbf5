// Package config provides configuration loading and management for volslice.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many slices of a stack are extracted at once
		NumCores int `yaml:"numCores"`

		// MaxElements is the largest grid, in cells, that may be allocated
		MaxElements int `yaml:"maxElements"`
	} `yaml:"processing"`

	// Slice extraction parameters
	Slice struct {
		// PixelSize is the in-plane size of a slice voxel in mm; 0 uses the
		// smallest source voxel dimension
		PixelSize float64 `yaml:"pixelSize"`

		// Thickness of each slice in mm; 0 uses one source voxel
		Thickness float64 `yaml:"thickness"`

		// Interpolation is "nearest" or "trilinear"
		Interpolation string `yaml:"interpolation"`
	} `yaml:"slice"`

	// Distribution parameters
	Distribution struct {
		// Bins is the number of bins of the intensity distribution
		Bins int `yaml:"bins"`
	} `yaml:"distribution"`

	// Phantom parameters, used when no input volume is given
	Phantom struct {
		Dim           [3]int     `yaml:"dim"`
		VoxelSize     [3]float64 `yaml:"voxelSize"`
		Frames        int        `yaml:"frames"`
		FrameDuration float64    `yaml:"frameDuration"`
		Kind          string     `yaml:"kind"`
		Shape         string     `yaml:"shape"`
	} `yaml:"phantom"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// LogFile, if set, receives log output instead of stderr
		LogFile string `yaml:"logFile"`

		// LogMaxSize is the size in megabytes at which the log file rotates
		LogMaxSize int `yaml:"logMaxSize"`

		// LogMaxAge is the number of days rotated log files are kept
		LogMaxAge int `yaml:"logMaxAge"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.MaxElements = 1 << 31

	// Set default slice parameters
	cfg.Slice.PixelSize = 0
	cfg.Slice.Thickness = 0
	cfg.Slice.Interpolation = "nearest"

	cfg.Distribution.Bins = 1024

	// Set default phantom parameters
	cfg.Phantom.Dim = [3]int{64, 64, 32}
	cfg.Phantom.VoxelSize = [3]float64{1, 1, 1}
	cfg.Phantom.Frames = 1
	cfg.Phantom.FrameDuration = 1
	cfg.Phantom.Kind = "float32"
	cfg.Phantom.Shape = "shells"

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.LogMaxSize = 100
	cfg.Output.LogMaxAge = 30

	return cfg
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Processing.MaxElements < 1 {
		return fmt.Errorf("processing.maxElements must be at least 1, got %d", c.Processing.MaxElements)
	}
	if c.Distribution.Bins < 2 {
		return fmt.Errorf("distribution.bins must be at least 2, got %d", c.Distribution.Bins)
	}
	if c.Slice.PixelSize < 0 || c.Slice.Thickness < 0 {
		return fmt.Errorf("slice.pixelSize and slice.thickness must not be negative")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
