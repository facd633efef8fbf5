package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the defaults are usable as is
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}
	if cfg.Distribution.Bins != 1024 {
		t.Errorf("Expected 1024 bins, got %d", cfg.Distribution.Bins)
	}
	if cfg.Slice.Interpolation != "nearest" {
		t.Errorf("Expected nearest interpolation, got %q", cfg.Slice.Interpolation)
	}
}

// TestLoadConfigMissing verifies a missing file yields the defaults
func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Phantom.Shape != "shells" {
		t.Errorf("Expected default phantom shape, got %q", cfg.Phantom.Shape)
	}
}

// TestSaveAndLoadConfig verifies a saved config is read back with overrides
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Slice.PixelSize = 0.5
	cfg.Slice.Interpolation = "trilinear"
	cfg.Phantom.Dim = [3]int{8, 8, 4}
	cfg.Phantom.Frames = 2
	cfg.Output.LogFile = "volslice.log"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.NumCores != 3 || loaded.Slice.PixelSize != 0.5 || loaded.Slice.Interpolation != "trilinear" {
		t.Errorf("Overrides lost: %+v", loaded)
	}
	if loaded.Phantom.Dim != [3]int{8, 8, 4} || loaded.Phantom.Frames != 2 {
		t.Errorf("Expected phantom 8x8x4 with 2 frames, got %v x %d", loaded.Phantom.Dim, loaded.Phantom.Frames)
	}
	if loaded.Output.LogFile != "volslice.log" {
		t.Errorf("Expected log file volslice.log, got %q", loaded.Output.LogFile)
	}
}

// TestLoadConfigPartial verifies keys absent from the file keep their defaults
func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("slice:\n  thickness: 2.5\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Slice.Thickness != 2.5 {
		t.Errorf("Expected thickness 2.5, got %f", cfg.Slice.Thickness)
	}
	if cfg.Distribution.Bins != 1024 {
		t.Errorf("Expected default bins, got %d", cfg.Distribution.Bins)
	}
}

// TestLoadConfigInvalid verifies malformed and out-of-range files are rejected
func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"malformed.yaml": "processing: [",
		"bins.yaml":      "distribution:\n  bins: 1\n",
		"cores.yaml":     "processing:\n  numCores: 0\n",
	}
	for name, content := range tests {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

// TestCreateDefaultConfigFile verifies the default file can be created
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}
