package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultTable, cfg.Table)
	assert.Equal(t, CommitLazy, cfg.CommitMode)
	assert.Equal(t, ScanExpiryAware, cfg.ScanMode)
	assert.Equal(t, DefaultLeaseDuration, cfg.LeaseDuration)
	assert.Equal(t, CodecJSON, cfg.Codec)
}

func TestDefaultConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv(EnvTable, "jobs")
	t.Setenv(EnvCommitMode, "sync")
	t.Setenv(EnvScanMode, "lock-only")
	t.Setenv(EnvLeaseDuration, "30s")
	t.Setenv(EnvInMemory, "true")
	t.Setenv(EnvCodec, CodecMsgpack)
	t.Setenv(EnvSequenceBandwidth, "not-a-number")

	cfg := DefaultConfig()

	assert.Equal(t, "jobs", cfg.Table)
	assert.Equal(t, CommitSync, cfg.CommitMode)
	assert.Equal(t, ScanLockOnly, cfg.ScanMode)
	assert.Equal(t, 30*time.Second, cfg.LeaseDuration)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, CodecMsgpack, cfg.Codec)
	assert.Equal(t, uint64(DefaultSequenceBandwidth), cfg.SequenceBandwidth)
}

func TestMergeWithDefaults_KeepsCallerValues(t *testing.T) {
	cfg, err := MergeWithDefaults(Config{
		Table:         "orders",
		LeaseDuration: time.Second,
		CommitMode:    CommitSync,
	})
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.Table)
	assert.Equal(t, time.Second, cfg.LeaseDuration)
	assert.Equal(t, CommitSync, cfg.CommitMode)
	assert.Equal(t, "./data/tabq", cfg.Dir)
	assert.Equal(t, uint64(DefaultSequenceBandwidth), cfg.SequenceBandwidth)
	assert.Equal(t, "tabq", cfg.Metrics.ServiceName)
	assert.NotZero(t, cfg.Badger.MemTableSize)
}

func TestMergeWithDefaults_ExplicitModesBeatEnvironment(t *testing.T) {
	t.Setenv(EnvCommitMode, "sync")
	t.Setenv(EnvScanMode, "lock-only")
	t.Setenv(EnvInMemory, "true")

	dir := t.TempDir()
	cfg, err := MergeWithDefaults(Config{
		Dir:        dir,
		CommitMode: CommitLazy,
		ScanMode:   ScanExpiryAware,
	})
	require.NoError(t, err)

	assert.Equal(t, CommitLazy, cfg.CommitMode)
	assert.Equal(t, ScanExpiryAware, cfg.ScanMode)
	assert.False(t, cfg.InMemory)
	assert.Equal(t, dir, cfg.Dir)

	unset, err := MergeWithDefaults(Config{})
	require.NoError(t, err)

	assert.Equal(t, CommitSync, unset.CommitMode)
	assert.Equal(t, ScanLockOnly, unset.ScanMode)
	assert.True(t, unset.InMemory)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dir", func(c *Config) { c.Dir = "" }},
		{"empty table", func(c *Config) { c.Table = "" }},
		{"zero lease", func(c *Config) { c.LeaseDuration = 0 }},
		{"negative reap", func(c *Config) { c.ReapInterval = -time.Second }},
		{"zero bandwidth", func(c *Config) { c.SequenceBandwidth = 0 }},
		{"unknown codec", func(c *Config) { c.Codec = "gob" }},
		{"unknown commit mode", func(c *Config) { c.CommitMode = CommitMode(9) }},
		{"unknown scan mode", func(c *Config) { c.ScanMode = ScanMode(9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InMemory = false
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabq.yaml")
	content := `
dir: /var/lib/tabq
table: emails
commit_mode: sync
scan_mode: lock-only
lease_duration: 90s
reap_interval: 5s
codec: msgpack
metrics:
  disabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/tabq", cfg.Dir)
	assert.Equal(t, "emails", cfg.Table)
	assert.Equal(t, CommitSync, cfg.CommitMode)
	assert.Equal(t, ScanLockOnly, cfg.ScanMode)
	assert.Equal(t, 90*time.Second, cfg.LeaseDuration)
	assert.Equal(t, 5*time.Second, cfg.ReapInterval)
	assert.Equal(t, CodecMsgpack, cfg.Codec)
	assert.True(t, cfg.Metrics.Disabled)
	assert.Equal(t, "tabq", cfg.Metrics.ServiceName)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("commit_mode: eventually\n"), 0o600))
	_, err = LoadConfigFile(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
