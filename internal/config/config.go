package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete engine configuration (spec §6.3's
// Options, plus the ambient settings an operator needs around it).
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Journal    JournalConfig    `yaml:"journal"`
	Space      SpaceConfig      `yaml:"space"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Features   FeatureConfig    `yaml:"features"`
}

// GlobalConfig represents global engine settings.
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
	ProfilePort int    `yaml:"profile_port"`
	RuntimeDir  string `yaml:"runtime_dir"`
	PersistDir  string `yaml:"persist_dir"`
}

// JournalConfig mirrors spec §6.3's Open options: per-file behavior that
// does not depend on directory-wide space accounting.
type JournalConfig struct {
	CompressThreshold string `yaml:"compress_threshold"`
	Seal              bool   `yaml:"seal"`
	StrictOrder       bool   `yaml:"strict_order"`
	CompactArrays     bool   `yaml:"compact_arrays"`
	WindowSize        string `yaml:"window_size"`
	WindowCacheSlots  int    `yaml:"window_cache_slots"`
}

// SpaceConfig mirrors spec §6.3's Options.metrics and §4.3's space
// accounting and vacuum-trigger limits.
type SpaceConfig struct {
	MinUse         string        `yaml:"min_use"`
	MaxUse         string        `yaml:"max_use"`
	KeepFree       string        `yaml:"keep_free"`
	MaxFileAge     time.Duration `yaml:"max_file_age"`
	MaxFileSize    string        `yaml:"max_file_size"`
	NMaxFiles      int           `yaml:"n_max_files"`
	RecomputeEvery time.Duration `yaml:"recompute_every"`
}

// ResilienceConfig groups the retry and circuit-breaker behavior around
// rotate-class errors (spec §4.2, §4.3, §7).
type ResilienceConfig struct {
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig represents the ingester-facing rotate-and-retry policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig governs the per-directory append breaker: after
// FailureThreshold consecutive rotate-class errors it opens, and further
// appends fail fast until Timeout has passed. Tripping the breaker does not
// run a vacuum.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MonitoringConfig represents monitoring settings.
type MonitoringConfig struct {
	Metrics      MetricsConfig      `yaml:"metrics"`
	HealthChecks HealthChecksConfig `yaml:"health_checks"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// MetricsConfig represents metrics settings.
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Prometheus   bool              `yaml:"prometheus"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// HealthChecksConfig represents health check settings.
type HealthChecksConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Structured bool           `yaml:"structured"`
	Format     string         `yaml:"format"`
	Sampling   SamplingConfig `yaml:"sampling"`
}

// SamplingConfig represents log sampling settings.
type SamplingConfig struct {
	Enabled bool `yaml:"enabled"`
	Rate    int  `yaml:"rate"`
}

// FeatureConfig represents feature flags.
type FeatureConfig struct {
	Prefetch          bool `yaml:"prefetch"`
	ChainCache        bool `yaml:"chain_cache"`
	BootGrouping      bool `yaml:"boot_grouping"`
	ConcurrentOpen    bool `yaml:"concurrent_open"`
	AdvisoryFileLocks bool `yaml:"advisory_file_locks"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 8080,
			HealthPort:  8081,
			ProfilePort: 6060,
			RuntimeDir:  "/run/logarc",
			PersistDir:  "/var/log/logarc",
		},
		Journal: JournalConfig{
			CompressThreshold: "512B",
			Seal:              false,
			StrictOrder:       false,
			CompactArrays:     false,
			WindowSize:        "8MB",
			WindowCacheSlots:  64,
		},
		Space: SpaceConfig{
			MinUse:         "16MB",
			MaxUse:         "4GB",
			KeepFree:       "1GB",
			MaxFileAge:     30 * 24 * time.Hour,
			MaxFileSize:    "128MB",
			NMaxFiles:      100,
			RecomputeEvery: 30 * time.Second,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts: 1,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    1 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 2,
				Timeout:          60 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:    true,
				Prometheus: true,
				CustomLabels: map[string]string{
					"service": "logarc",
				},
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Timeout:  5 * time.Second,
			},
			Logging: LoggingConfig{
				Structured: true,
				Format:     "json",
				Sampling: SamplingConfig{
					Enabled: true,
					Rate:    1000,
				},
			},
		},
		Features: FeatureConfig{
			Prefetch:          true,
			ChainCache:        true,
			BootGrouping:      true,
			ConcurrentOpen:    true,
			AdvisoryFileLocks: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("LOGARC_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("LOGARC_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("LOGARC_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}
	if val := os.Getenv("LOGARC_RUNTIME_DIR"); val != "" {
		c.Global.RuntimeDir = val
	}
	if val := os.Getenv("LOGARC_PERSIST_DIR"); val != "" {
		c.Global.PersistDir = val
	}

	if val := os.Getenv("LOGARC_COMPRESS_THRESHOLD"); val != "" {
		c.Journal.CompressThreshold = val
	}
	if val := os.Getenv("LOGARC_STRICT_ORDER"); val != "" {
		c.Journal.StrictOrder = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("LOGARC_SEAL"); val != "" {
		c.Journal.Seal = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("LOGARC_MAX_USE"); val != "" {
		c.Space.MaxUse = val
	}
	if val := os.Getenv("LOGARC_KEEP_FREE"); val != "" {
		c.Space.KeepFree = val
	}
	if val := os.Getenv("LOGARC_N_MAX_FILES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Space.NMaxFiles = n
		}
	}

	if val := os.Getenv("LOGARC_PREFETCH"); val != "" {
		c.Features.Prefetch = strings.ToLower(val) == "true"
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Space.NMaxFiles <= 0 {
		return fmt.Errorf("n_max_files must be greater than 0")
	}

	if c.Global.MetricsPort == c.Global.HealthPort {
		return fmt.Errorf("metrics_port and health_port cannot be the same")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// ParseSize parses a human-readable byte size ("2GB", "512MB", "64KB", "128B")
// the way the engine's Space/Journal config fields are expressed (spec §6.3
// options are byte counts; operators write them in the teacher's config
// style instead).
func ParseSize(sizeStr string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(sizeStr))
	if s == "" {
		return 0, nil
	}

	var multiplier uint64 = 1
	var numStr string
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	n, err := strconv.ParseUint(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", sizeStr, err)
	}
	return n * multiplier, nil
}
