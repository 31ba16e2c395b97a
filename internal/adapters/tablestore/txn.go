package tablestore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
)

type transaction struct {
	id      uint64
	db      *DB
	btx     *badger.Txn
	locks   map[uint64]domain.LockMode
	cursors []*cursor
	dirty   bool
	done    bool
}

func (t *transaction) Insert(payload []byte) (uint64, domain.Bookmark, error) {
	if t.done {
		return 0, nil, domain.ErrTransactionDone
	}

	id, err := t.db.nextID()
	if err != nil {
		return 0, nil, domain.NewStoreUnavailableError("allocate record id", err)
	}

	record := domain.NewRecord(payload)
	value, err := record.ToBytes()
	if err != nil {
		return 0, nil, domain.NewSerializationError("encode record", err)
	}

	if err := t.btx.Set(t.db.keys.rowKey(id), value); err != nil {
		return 0, nil, fmt.Errorf("insert record %d: %w", id, err)
	}
	if err := t.btx.Set(t.db.keys.leaseIndexKey(id, nil), []byte{}); err != nil {
		return 0, nil, fmt.Errorf("index record %d: %w", id, err)
	}
	t.dirty = true

	return id, encodeBookmark(id), nil
}

func (t *transaction) Scan(index domain.IndexKind) (ports.Cursor, error) {
	return t.scan(index, nil)
}

func (t *transaction) ScanLeased() (ports.Cursor, error) {
	start := append(append([]byte{}, t.db.keys.leaseIndex...), expirySet)
	return t.scan(domain.IndexLease, start)
}

func (t *transaction) scan(index domain.IndexKind, start []byte) (ports.Cursor, error) {
	if t.done {
		return nil, domain.ErrTransactionDone
	}

	prefix := t.db.keys.prefix(index)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	c := &cursor{
		txn:   t,
		index: index,
		start: start,
		it:    t.btx.NewIterator(opts),
	}
	t.cursors = append(t.cursors, c)
	return c, nil
}

func (t *transaction) Seek(bookmark domain.Bookmark) (ports.Cursor, bool, error) {
	if t.done {
		return nil, false, domain.ErrTransactionDone
	}

	id, err := decodeBookmark(bookmark)
	if err != nil {
		return nil, false, err
	}

	record, found, err := t.get(id)
	if err != nil || !found {
		return nil, false, err
	}

	c := &cursor{
		txn:    t,
		index:  domain.IndexPrimary,
		pinned: &row{id: id, record: record},
	}
	t.cursors = append(t.cursors, c)
	return c, true, nil
}

func (t *transaction) Commit(mode domain.CommitMode) error {
	if t.done {
		return domain.ErrTransactionDone
	}
	defer t.finish()

	t.closeCursors()
	if !t.dirty {
		t.btx.Discard()
		return nil
	}

	if err := t.btx.Commit(); err != nil {
		return fmt.Errorf("commit transaction %d: %w", t.id, err)
	}
	if mode == domain.CommitSync {
		if err := t.db.Sync(); err != nil {
			return fmt.Errorf("sync transaction %d: %w", t.id, err)
		}
	}
	return nil
}

func (t *transaction) Rollback() error {
	if t.done {
		return nil
	}
	defer t.finish()

	t.closeCursors()
	t.btx.Discard()
	return nil
}

func (t *transaction) finish() {
	t.done = true
	for row := range t.locks {
		t.db.locks.unlock(row, t.id)
	}
	t.locks = nil
}

func (t *transaction) closeCursors() {
	for _, c := range t.cursors {
		c.Close()
	}
	t.cursors = nil
}

func (t *transaction) get(id uint64) (*domain.Record, bool, error) {
	key := t.db.keys.rowKey(id)
	item, err := t.btx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read record %d: %w", id, err)
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("read record %d: %w", id, err)
	}
	record, err := domain.RecordFromBytes(value)
	if err != nil {
		return nil, false, domain.NewCorruptedError(string(key), err)
	}
	return record, true, nil
}

// lock takes a row lock without waiting. A lock newly granted to this
// transaction is checked against the latest committed row: if the row is
// gone or no longer matches what the caller scanned, the lock is dropped and
// the attempt counts as contention.
func (t *transaction) lock(id uint64, mode domain.LockMode, matches func(*domain.Record) bool) (*domain.Record, bool, error) {
	held, alreadyHeld := t.locks[id]
	if alreadyHeld && (held == domain.LockExclusive || mode == domain.LockShared) {
		return nil, true, nil
	}

	if !t.db.locks.tryLock(id, t.id, mode) {
		return nil, false, nil
	}
	t.locks[id] = mode
	if alreadyHeld {
		return nil, true, nil
	}

	latest, found, err := t.db.readLatest(id)
	if err != nil {
		t.unlock(id)
		return nil, false, err
	}
	if !found || (matches != nil && !matches(latest)) {
		t.unlock(id)
		return nil, false, nil
	}
	return latest, true, nil
}

func (t *transaction) unlock(id uint64) {
	delete(t.locks, id)
	t.db.locks.unlock(id, t.id)
}

func (t *transaction) writeRecord(id uint64, record *domain.Record) error {
	value, err := record.ToBytes()
	if err != nil {
		return domain.NewSerializationError("encode record", err)
	}
	if err := t.btx.Set(t.db.keys.rowKey(id), value); err != nil {
		return fmt.Errorf("write record %d: %w", id, err)
	}
	t.dirty = true
	return nil
}

func (t *transaction) moveIndex(id uint64, from, to *int64) error {
	if err := t.btx.Delete(t.db.keys.leaseIndexKey(id, from)); err != nil {
		return fmt.Errorf("unindex record %d: %w", id, err)
	}
	if err := t.btx.Set(t.db.keys.leaseIndexKey(id, to), []byte{}); err != nil {
		return fmt.Errorf("index record %d: %w", id, err)
	}
	t.dirty = true
	return nil
}

func (t *transaction) remove(id uint64, expiry *int64) error {
	if err := t.btx.Delete(t.db.keys.rowKey(id)); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if err := t.btx.Delete(t.db.keys.leaseIndexKey(id, expiry)); err != nil {
		return fmt.Errorf("unindex record %d: %w", id, err)
	}
	t.dirty = true
	return nil
}
