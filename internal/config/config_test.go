package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testDebugLevel = "DEBUG"
	testMaxUse     = "8GB"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 8080 {
		t.Errorf("Expected MetricsPort to be 8080, got %d", cfg.Global.MetricsPort)
	}
	if cfg.Global.HealthPort != 8081 {
		t.Errorf("Expected HealthPort to be 8081, got %d", cfg.Global.HealthPort)
	}

	if cfg.Journal.StrictOrder {
		t.Error("Expected StrictOrder to be disabled by default")
	}
	if cfg.Journal.CompressThreshold != "512B" {
		t.Errorf("Expected CompressThreshold to be 512B, got %s", cfg.Journal.CompressThreshold)
	}

	if cfg.Space.MaxUse != "4GB" {
		t.Errorf("Expected MaxUse to be 4GB, got %s", cfg.Space.MaxUse)
	}
	if cfg.Space.NMaxFiles != 100 {
		t.Errorf("Expected NMaxFiles to be 100, got %d", cfg.Space.NMaxFiles)
	}

	if !cfg.Features.Prefetch {
		t.Error("Expected Prefetch to be enabled by default")
	}
	if !cfg.Features.ChainCache {
		t.Error("Expected ChainCache to be enabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Configuration
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  func() *Configuration { return NewDefault() },
			wantErr: false,
		},
		{
			name: "invalid n_max_files",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Space.NMaxFiles = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "n_max_files must be greater than 0",
		},
		{
			name: "same metrics and health ports",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.MetricsPort = 8080
				cfg.Global.HealthPort = 8080
				return cfg
			},
			wantErr: true,
			errMsg:  "metrics_port and health_port cannot be the same",
		},
		{
			name: "invalid log level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.LogLevel = "INVALID"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %v", err, tt.errMsg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
global:
  log_level: DEBUG
  metrics_port: 9090
  health_port: 9091

journal:
  strict_order: true
  compress_threshold: 1KB

space:
  max_use: 8GB
  n_max_files: 50

features:
  prefetch: false
`

	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Global.LogLevel != testDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort to be 9090, got %d", cfg.Global.MetricsPort)
	}
	if !cfg.Journal.StrictOrder {
		t.Error("Expected StrictOrder to be true")
	}
	if cfg.Space.MaxUse != testMaxUse {
		t.Errorf("Expected MaxUse to be 8GB, got %s", cfg.Space.MaxUse)
	}
	if cfg.Space.NMaxFiles != 50 {
		t.Errorf("Expected NMaxFiles to be 50, got %d", cfg.Space.NMaxFiles)
	}
	if cfg.Features.Prefetch {
		t.Error("Expected Prefetch to be false")
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	testEnvVars := map[string]string{
		"LOGARC_LOG_LEVEL":     "ERROR",
		"LOGARC_METRICS_PORT":  "9090",
		"LOGARC_STRICT_ORDER":  "true",
		"LOGARC_MAX_USE":       testMaxUse,
		"LOGARC_N_MAX_FILES":   "30",
		"LOGARC_PREFETCH":      "false",
	}

	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Global.LogLevel != "ERROR" {
		t.Errorf("Expected LogLevel to be ERROR, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort to be 9090, got %d", cfg.Global.MetricsPort)
	}
	if !cfg.Journal.StrictOrder {
		t.Error("Expected StrictOrder to be true")
	}
	if cfg.Space.MaxUse != testMaxUse {
		t.Errorf("Expected MaxUse to be 8GB, got %s", cfg.Space.MaxUse)
	}
	if cfg.Space.NMaxFiles != 30 {
		t.Errorf("Expected NMaxFiles to be 30, got %d", cfg.Space.NMaxFiles)
	}
	if cfg.Features.Prefetch {
		t.Error("Expected Prefetch to be false")
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "saved_config.yaml")

	cfg := NewDefault()
	cfg.Global.LogLevel = testDebugLevel
	cfg.Space.MaxUse = testMaxUse

	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	newCfg := NewDefault()
	if err := newCfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if newCfg.Global.LogLevel != testDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", newCfg.Global.LogLevel)
	}
	if newCfg.Space.MaxUse != testMaxUse {
		t.Errorf("Expected MaxUse to be 8GB, got %s", newCfg.Space.MaxUse)
	}
}

func TestSaveToFileCreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := NewDefault()
	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
	if _, err := os.Stat(filepath.Dir(configFile)); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]uint64{
		"":      0,
		"128B":  128,
		"1KB":   1024,
		"2MB":   2 * 1024 * 1024,
		"4GB":   4 * 1024 * 1024 * 1024,
		"1000":  1000,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil {
			t.Fatalf("ParseSize(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

var _ = time.Second
