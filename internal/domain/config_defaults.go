package domain

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	EnvDir               = "TABQ_DIR"
	EnvInMemory          = "TABQ_IN_MEMORY"
	EnvTable             = "TABQ_TABLE"
	EnvCommitMode        = "TABQ_COMMIT_MODE"
	EnvScanMode          = "TABQ_SCAN_MODE"
	EnvLeaseDuration     = "TABQ_LEASE_DURATION"
	EnvReapInterval      = "TABQ_REAP_INTERVAL"
	EnvSequenceBandwidth = "TABQ_SEQUENCE_BANDWIDTH"
	EnvCodec             = "TABQ_CODEC"
	EnvMetricsDisabled   = "TABQ_METRICS_DISABLED"
)

const (
	DefaultTable             = "queue"
	DefaultLeaseDuration     = 5 * time.Minute
	DefaultSequenceBandwidth = 1000
)

func DefaultConfig() *Config {
	return &Config{
		Dir:               getEnvOrDefault(EnvDir, "./data/tabq"),
		InMemory:          getEnvBoolOrDefault(EnvInMemory, false),
		Table:             getEnvOrDefault(EnvTable, DefaultTable),
		CommitMode:        getEnvCommitModeOrDefault(EnvCommitMode, CommitLazy),
		ScanMode:          getEnvScanModeOrDefault(EnvScanMode, ScanExpiryAware),
		LeaseDuration:     getEnvDurationOrDefault(EnvLeaseDuration, DefaultLeaseDuration),
		ReapInterval:      getEnvDurationOrDefault(EnvReapInterval, 0),
		SequenceBandwidth: uint64(getEnvIntOrDefault(EnvSequenceBandwidth, DefaultSequenceBandwidth)),
		Codec:             getEnvOrDefault(EnvCodec, CodecJSON),
		Metrics:           DefaultMetricsConfig(),
		Badger:            DefaultBadgerConfig(),
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Disabled:    getEnvBoolOrDefault(EnvMetricsDisabled, false),
		ServiceName: "tabq",
		Interval:    10 * time.Second,
		Retain:      time.Minute,
	}
}

func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		MemTableSize:            16 << 20,
		ValueLogFileSize:        64 << 20,
		NumMemtables:            2,
		NumLevelZeroTables:      2,
		NumLevelZeroTablesStall: 4,
		BlockCacheSize:          8 << 20,
		IndexCacheSize:          8 << 20,
	}
}

// MergeWithDefaults fills every zero-valued field of cfg from DefaultConfig.
// Fields the caller set are kept. A caller that names a Dir gets an on-disk
// store even when TABQ_IN_MEMORY is set.
func MergeWithDefaults(cfg Config) (*Config, error) {
	defaults := DefaultConfig()
	if cfg.Dir != "" {
		defaults.InMemory = false
	}
	if err := mergo.Merge(&cfg, *defaults); err != nil {
		return nil, fmt.Errorf("merge config defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}

	return MergeWithDefaults(cfg)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvCommitModeOrDefault(key string, defaultValue CommitMode) CommitMode {
	if value := os.Getenv(key); value != "" {
		if mode, err := ParseCommitMode(value); err == nil {
			return mode
		}
	}
	return defaultValue
}

func getEnvScanModeOrDefault(key string, defaultValue ScanMode) ScanMode {
	if value := os.Getenv(key); value != "" {
		if mode, err := ParseScanMode(value); err == nil {
			return mode
		}
	}
	return defaultValue
}
