package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	Dir      string       `json:"dir" yaml:"dir"`
	InMemory bool         `json:"in_memory" yaml:"in_memory"`
	Table    string       `json:"table" yaml:"table"`
	Logger   *slog.Logger `json:"-" yaml:"-"`

	CommitMode        CommitMode    `json:"commit_mode" yaml:"commit_mode"`
	ScanMode          ScanMode      `json:"scan_mode" yaml:"scan_mode"`
	LeaseDuration     time.Duration `json:"lease_duration" yaml:"lease_duration"`
	ReapInterval      time.Duration `json:"reap_interval" yaml:"reap_interval"`
	SequenceBandwidth uint64        `json:"sequence_bandwidth" yaml:"sequence_bandwidth"`
	Codec             string        `json:"codec" yaml:"codec"`

	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Badger  BadgerConfig  `json:"badger" yaml:"badger"`
}

type MetricsConfig struct {
	Disabled    bool          `json:"disabled" yaml:"disabled"`
	ServiceName string        `json:"service_name" yaml:"service_name"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Retain      time.Duration `json:"retain" yaml:"retain"`
}

type BadgerConfig struct {
	MemTableSize            int64 `json:"mem_table_size" yaml:"mem_table_size"`
	ValueLogFileSize        int64 `json:"value_log_file_size" yaml:"value_log_file_size"`
	NumMemtables            int   `json:"num_memtables" yaml:"num_memtables"`
	NumLevelZeroTables      int   `json:"num_level_zero_tables" yaml:"num_level_zero_tables"`
	NumLevelZeroTablesStall int   `json:"num_level_zero_tables_stall" yaml:"num_level_zero_tables_stall"`
	BlockCacheSize          int64 `json:"block_cache_size" yaml:"block_cache_size"`
	IndexCacheSize          int64 `json:"index_cache_size" yaml:"index_cache_size"`
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

func (c *Config) Validate() error {
	if !c.InMemory && c.Dir == "" {
		return NewConfigError("dir", "is required unless in_memory is set")
	}
	if c.Table == "" {
		return NewConfigError("table", "cannot be empty")
	}
	if c.LeaseDuration <= 0 {
		return NewConfigError("lease_duration", "must be positive")
	}
	if c.ReapInterval < 0 {
		return NewConfigError("reap_interval", "cannot be negative")
	}
	if c.SequenceBandwidth == 0 {
		return NewConfigError("sequence_bandwidth", "must be positive")
	}
	switch c.Codec {
	case CodecJSON, CodecMsgpack:
	default:
		return NewConfigError("codec", "must be one of json|msgpack, got "+c.Codec)
	}
	if c.CommitMode != CommitLazy && c.CommitMode != CommitSync {
		return NewConfigError("commit_mode", "unknown value")
	}
	if c.ScanMode != ScanExpiryAware && c.ScanMode != ScanLockOnly {
		return NewConfigError("scan_mode", "unknown value")
	}
	return nil
}

func (m CommitMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *CommitMode) UnmarshalText(text []byte) error {
	parsed, err := ParseCommitMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m ScanMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ScanMode) UnmarshalText(text []byte) error {
	parsed, err := ParseScanMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
