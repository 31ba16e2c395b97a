// Package tabq provides durable FIFO queues layered on a transactional
// ordered table store.
//
// Two queue flavours share one storage layout:
//   - SimpleQueue removes an item at the moment it is handed out.
//   - LeaseQueue hands out a time-limited Lease; the item stays stored until
//     the lease is completed and becomes eligible again once the lease expires.
//
// Basic usage:
//
//	store, err := tabq.Open(tabq.Config{Dir: "./data/jobs"})
//	jobs, err := tabq.NewLeaseQueue[Job](store)
//	jobs.Enqueue(Job{ID: "42"})
//
//	lease, found, err := jobs.TryTakeLease()
//	if found {
//	    process(lease.Item)
//	    lease.MarkCompleted()
//	}
package tabq

import (
	"fmt"
	"log/slog"

	"github.com/eleven-am/tabq/internal/adapters/codec"
	"github.com/eleven-am/tabq/internal/adapters/observability"
	"github.com/eleven-am/tabq/internal/adapters/pool"
	"github.com/eleven-am/tabq/internal/adapters/queue"
	"github.com/eleven-am/tabq/internal/adapters/tablestore"
	"github.com/eleven-am/tabq/internal/domain"
)

// SimpleQueue is a FIFO queue whose dequeue removes the item.
type SimpleQueue[T any] = queue.SimpleQueue[T]

// LeaseQueue is a FIFO queue that hands out time-limited claims.
type LeaseQueue[T any] = queue.LeaseQueue[T]

// Lease is a claim on one queued item. Call MarkCompleted once the item has
// been processed.
type Lease[T any] = queue.Lease[T]

// Bookmark identifies a stored record until it is deleted.
type Bookmark = domain.Bookmark

// StorageError carries the failure category of a queue or store operation.
type StorageError = domain.StorageError

var (
	ErrStoreUnavailable = domain.ErrStoreUnavailable
	ErrEmptyQueue       = domain.ErrEmptyQueue
	ErrSerialization    = domain.ErrSerialization
	ErrRecordLocked     = domain.ErrRecordLocked
	ErrLeaseLost        = domain.ErrLeaseLost
	ErrClosed           = domain.ErrClosed
	ErrInvalidConfig    = domain.ErrInvalidConfig
)

// Store owns the table store and the metrics sink shared by every queue
// created from it.
type Store struct {
	config  *Config
	db      *tablestore.DB
	metrics *observability.Metrics
	base    *slog.Logger
	logger  *slog.Logger
}

// Open merges cfg with DefaultConfig and opens the table store it describes.
func Open(cfg Config) (*Store, error) {
	merged, err := domain.MergeWithDefaults(cfg)
	if err != nil {
		return nil, err
	}

	base := merged.Logger
	if base == nil {
		base = slog.Default()
	}
	logger := base.With("component", "tabq", "table", merged.Table)

	metrics, err := observability.NewMetrics(merged.Metrics)
	if err != nil {
		return nil, err
	}

	db, err := tablestore.Open(merged, base)
	if err != nil {
		return nil, err
	}

	logger.Info("store opened",
		"dir", merged.Dir,
		"in_memory", merged.InMemory,
		"commit_mode", merged.CommitMode,
		"scan_mode", merged.ScanMode,
		"codec", merged.Codec)

	return &Store{
		config:  merged,
		db:      db,
		metrics: metrics,
		base:    base,
		logger:  logger,
	}, nil
}

// Close closes the table store. Queues created from the store must be closed
// first.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	s.logger.Info("store closed")
	return nil
}

// Config returns the effective configuration after defaults were applied.
func (s *Store) Config() Config {
	return *s.config
}

// Counter reports the running total of a queue metric such as "enqueued" or
// "leased". It is zero when metrics are disabled.
func (s *Store) Counter(name string) float64 {
	return s.metrics.Counter(name)
}

// NewSimpleQueue creates a SimpleQueue over the store's table using the
// configured codec.
func NewSimpleQueue[T any](s *Store) (*SimpleQueue[T], error) {
	c, err := codec.New[T](s.config.Codec)
	if err != nil {
		return nil, err
	}
	return queue.NewSimpleQueue[T](pool.New(s.db, s.base), c, s.settings(), s.base), nil
}

// NewLeaseQueue creates a LeaseQueue over the store's table using the
// configured codec. A positive ReapInterval starts a background sweep of
// expired leases that stops when the queue is closed.
func NewLeaseQueue[T any](s *Store) (*LeaseQueue[T], error) {
	c, err := codec.New[T](s.config.Codec)
	if err != nil {
		return nil, err
	}
	return queue.NewLeaseQueue[T](pool.New(s.db, s.base), c, s.settings(), s.base), nil
}

func (s *Store) settings() queue.Settings {
	return queue.SettingsFromConfig(s.config, s.metrics)
}
