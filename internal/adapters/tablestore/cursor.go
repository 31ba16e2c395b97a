package tablestore

import (
	"bytes"
	"io"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/tabq/internal/domain"
)

type row struct {
	id      uint64
	record  *domain.Record
	indexed *int64
	leased  bool
	deleted bool
}

type cursor struct {
	txn    *transaction
	index  domain.IndexKind
	start  []byte
	it     *badger.Iterator
	item   *badger.Item
	pinned *row

	started bool
	cur     *row
	err     error
	closed  bool
}

func (c *cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	c.item = nil

	if c.pinned != nil {
		if c.started {
			c.cur = nil
			return false
		}
		c.started = true
		c.cur = c.pinned
		return true
	}

	if !c.started {
		if c.start != nil {
			c.it.Seek(c.start)
		} else {
			c.it.Rewind()
		}
		c.started = true
	} else {
		c.it.Next()
	}
	if !c.it.Valid() {
		c.cur = nil
		return false
	}

	item := c.it.Item()
	key := item.KeyCopy(nil)
	keys := c.txn.db.keys

	if c.index == domain.IndexLease {
		id, expiry, err := keys.parseLeaseIndexKey(key)
		if err != nil {
			c.err = err
			c.cur = nil
			return false
		}
		c.cur = &row{id: id, indexed: expiry, leased: true}
		return true
	}

	id, err := keys.idFromRowKey(key)
	if err != nil {
		c.err = err
		c.cur = nil
		return false
	}
	c.cur = &row{id: id}
	c.item = item
	return true
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) ID() uint64 {
	if c.cur == nil {
		return 0
	}
	return c.cur.id
}

func (c *cursor) LeaseExpiry() (time.Time, bool) {
	if c.cur == nil {
		return time.Time{}, false
	}
	if c.cur.leased && c.cur.record == nil {
		if c.cur.indexed == nil {
			return time.Time{}, false
		}
		return time.Unix(0, *c.cur.indexed), true
	}
	record, err := c.load()
	if err != nil {
		c.err = err
		return time.Time{}, false
	}
	return record.Expiry()
}

func (c *cursor) Bookmark() domain.Bookmark {
	if c.cur == nil {
		return nil
	}
	return encodeBookmark(c.cur.id)
}

func (c *cursor) TryLock(mode domain.LockMode) (bool, error) {
	if c.cur == nil {
		return false, domain.ErrRecordNotFound
	}

	var matches func(*domain.Record) bool
	if c.cur.leased {
		indexed := c.cur.indexed
		matches = func(latest *domain.Record) bool {
			return sameExpiry(latest.LeaseExpiry, indexed)
		}
	}

	latest, ok, err := c.txn.lock(c.cur.id, mode, matches)
	if err != nil || !ok {
		return false, err
	}
	if latest != nil {
		c.cur.record = latest
	}
	return true, nil
}

func (c *cursor) Payload() ([]byte, error) {
	record, err := c.load()
	if err != nil {
		return nil, err
	}
	return record.Payload, nil
}

// PayloadReader wraps the loaded payload. badger returns values whole, so
// there is no partial read from disk.
func (c *cursor) PayloadReader() (io.Reader, error) {
	payload, err := c.Payload()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(payload), nil
}

func (c *cursor) SetLeaseExpiry(t time.Time) error {
	record, err := c.load()
	if err != nil {
		return err
	}

	from := record.LeaseExpiry
	record.SetExpiry(t)
	return c.rewrite(record, from)
}

func (c *cursor) ClearLeaseExpiry() error {
	record, err := c.load()
	if err != nil {
		return err
	}
	if record.LeaseExpiry == nil {
		return nil
	}

	from := record.LeaseExpiry
	record.ClearExpiry()
	return c.rewrite(record, from)
}

func (c *cursor) rewrite(record *domain.Record, from *int64) error {
	if err := c.txn.writeRecord(c.cur.id, record); err != nil {
		return err
	}
	if err := c.txn.moveIndex(c.cur.id, from, record.LeaseExpiry); err != nil {
		return err
	}
	c.cur.indexed = record.LeaseExpiry
	return nil
}

func (c *cursor) Delete() error {
	record, err := c.load()
	if err != nil {
		return err
	}
	if err := c.txn.remove(c.cur.id, record.LeaseExpiry); err != nil {
		return err
	}
	c.cur.deleted = true
	return nil
}

func (c *cursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.item = nil
	if c.it != nil {
		c.it.Close()
	}
}

func (c *cursor) load() (*domain.Record, error) {
	if c.cur == nil || c.cur.deleted {
		return nil, domain.ErrRecordNotFound
	}
	if c.cur.record != nil {
		return c.cur.record, nil
	}

	if c.item != nil {
		value, err := c.item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		record, err := domain.RecordFromBytes(value)
		if err != nil {
			return nil, domain.NewCorruptedError(string(c.item.KeyCopy(nil)), err)
		}
		c.cur.record = record
		return record, nil
	}

	record, found, err := c.txn.get(c.cur.id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrRecordNotFound
	}
	c.cur.record = record
	return record, nil
}

func sameExpiry(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
