package tablestore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
	"github.com/google/uuid"
)

// DB is a badger-backed table store holding one table of queue records.
// Row isolation comes from the lock manager, so badger's own conflict
// detection is switched off.
type DB struct {
	db     *badger.DB
	keys   keySpace
	seq    *badger.Sequence
	locks  *lockManager
	logger *slog.Logger

	txnIDs   atomic.Uint64
	sessions atomic.Int64

	mu     sync.RWMutex
	closed bool
}

var _ ports.TableStore = (*DB)(nil)

func Open(cfg *domain.Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tablestore", "table", cfg.Table)

	opts := badgerOptions(cfg, logger)
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, domain.NewStoreUnavailableError("create data directory", err)
		}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("open badger", err)
	}

	keys := newKeySpace(cfg.Table)
	seq, err := db.GetSequence(keys.sequence, cfg.SequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, domain.NewStoreUnavailableError("open id sequence", err)
	}

	logger.Debug("table store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory)

	return &DB{
		db:     db,
		keys:   keys,
		seq:    seq,
		locks:  newLockManager(),
		logger: logger,
	}, nil
}

func badgerOptions(cfg *domain.Config, logger *slog.Logger) badger.Options {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("")
		opts.InMemory = true
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts.Logger = &badgerLogger{logger: logger.With("component", "tablestore.badger")}
	opts.SyncWrites = false
	opts.DetectConflicts = false
	opts.NumVersionsToKeep = 1

	tuning := cfg.Badger
	if tuning.MemTableSize > 0 {
		opts.MemTableSize = tuning.MemTableSize
	}
	if tuning.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = tuning.ValueLogFileSize
	}
	if tuning.NumMemtables > 0 {
		opts.NumMemtables = tuning.NumMemtables
	}
	if tuning.NumLevelZeroTables > 0 {
		opts.NumLevelZeroTables = tuning.NumLevelZeroTables
	}
	if tuning.NumLevelZeroTablesStall > 0 {
		opts.NumLevelZeroTablesStall = tuning.NumLevelZeroTablesStall
	}
	if tuning.BlockCacheSize > 0 {
		opts.BlockCacheSize = tuning.BlockCacheSize
	}
	if tuning.IndexCacheSize > 0 {
		opts.IndexCacheSize = tuning.IndexCacheSize
	}
	return opts
}

func (d *DB) OpenSession() (ports.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, domain.NewStoreUnavailableError("open session", domain.ErrClosed)
	}

	d.sessions.Add(1)
	return &session{
		id: uuid.NewString(),
		db: d,
	}, nil
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if err := d.seq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release id sequence: %w", err))
	}
	if err := d.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close badger: %w", err))
	}
	if open := d.sessions.Load(); open > 0 {
		d.logger.Warn("table store closed with open sessions", "sessions", open)
	}
	return errors.Join(errs...)
}

// Sync flushes every committed write to disk.
func (d *DB) Sync() error {
	return d.db.Sync()
}

func (d *DB) nextID() (uint64, error) {
	n, err := d.seq.Next()
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (d *DB) nextTxnID() uint64 {
	return d.txnIDs.Add(1)
}

// readLatest reads a row from a fresh read view, so it observes every commit
// that finished before the call.
func (d *DB) readLatest(id uint64) (*domain.Record, bool, error) {
	var (
		record *domain.Record
		found  bool
	)
	key := d.keys.rowKey(id)
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err = domain.RecordFromBytes(value)
		if err != nil {
			return domain.NewCorruptedError(string(key), err)
		}
		found = true
		return nil
	})
	return record, found, err
}
