package tabq

import "github.com/eleven-am/tabq/internal/domain"

type Config = domain.Config

type MetricsConfig = domain.MetricsConfig

type BadgerConfig = domain.BadgerConfig

type CommitMode = domain.CommitMode

const (
	CommitLazy CommitMode = domain.CommitLazy
	CommitSync CommitMode = domain.CommitSync
)

type ScanMode = domain.ScanMode

const (
	ScanExpiryAware ScanMode = domain.ScanExpiryAware
	ScanLockOnly    ScanMode = domain.ScanLockOnly
)

const (
	CodecJSON    = domain.CodecJSON
	CodecMsgpack = domain.CodecMsgpack
)

// DefaultConfig returns the defaults, overridden by any TABQ_* environment
// variables that are set.
func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

// LoadConfigFile reads a YAML config file and fills unset fields from
// DefaultConfig.
func LoadConfigFile(path string) (*Config, error) {
	return domain.LoadConfigFile(path)
}

// IsEmptyQueue reports whether err means there was nothing to hand out.
func IsEmptyQueue(err error) bool {
	return domain.IsEmptyQueue(err)
}

// IsRecordLocked reports whether err is transient lock contention on a
// bookmark operation.
func IsRecordLocked(err error) bool {
	return domain.IsRecordLocked(err)
}

// IsLeaseLost reports whether a lease no longer owns its record.
func IsLeaseLost(err error) bool {
	return domain.IsLeaseLost(err)
}
