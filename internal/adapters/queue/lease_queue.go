package queue

import (
	"log/slog"
	"time"

	"github.com/eleven-am/tabq/internal/adapters/observability"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
	"github.com/google/uuid"
)

const reclaimBatchSize = 256

// LeaseQueue hands out time-limited claims on records. A claimed record
// stays stored until the claim is completed; if the claim expires the record
// becomes eligible again. There is no queue-level mutex: concurrent callers
// are kept apart by non-blocking row locks in the store.
type LeaseQueue[T any] struct {
	base[T]
	reaper *Reaper
}

func NewLeaseQueue[T any](pool ports.SessionPool, codec ports.Codec[T], settings Settings, logger *slog.Logger) *LeaseQueue[T] {
	q := &LeaseQueue[T]{}
	q.setup(pool, codec, settings, logger, "lease-queue")
	if q.settings.ReapInterval > 0 {
		q.reaper = NewReaper(q, q.settings.ReapInterval, q.logger)
		q.reaper.Start()
	}
	return q
}

func (q *LeaseQueue[T]) Enqueue(item T) error {
	return q.enqueue(item)
}

func (q *LeaseQueue[T]) Count() (int, error) {
	return q.count()
}

// TryTakeLease claims the first eligible record for LeaseDuration.
func (q *LeaseQueue[T]) TryTakeLease() (*Lease[T], bool, error) {
	start := time.Now()

	var lease *Lease[T]
	err := q.run(func(tx ports.Transaction) error {
		found, err := q.scan(tx, domain.LockExclusive, func(c ports.Cursor) error {
			item, err := q.decode(c)
			if err != nil {
				return err
			}

			expiresAt := q.now().Add(q.settings.LeaseDuration)
			if err := c.SetLeaseExpiry(expiresAt); err != nil {
				return err
			}

			lease = &Lease[T]{
				ID:        uuid.New(),
				Item:      item,
				Bookmark:  c.Bookmark(),
				RecordID:  c.ID(),
				ExpiresAt: time.Unix(0, expiresAt.UnixNano()),
				queue:     q,
			}
			return nil
		})
		if err != nil || !found {
			lease = nil
			return err
		}
		return tx.Commit(q.settings.CommitMode)
	})
	if err != nil {
		return nil, false, err
	}
	if lease == nil {
		q.metrics.IncrCounter(observability.MetricEmpty, 1)
		return nil, false, nil
	}

	q.metrics.IncrCounter(observability.MetricLeased, 1)
	q.metrics.MeasureSince(observability.MetricTakeLeaseLatency, start)
	q.logger.Debug("lease taken",
		"lease_id", lease.ID,
		"record_id", lease.RecordID,
		"expires_at", lease.ExpiresAt)
	return lease, true, nil
}

// TakeLease is the strict form of TryTakeLease.
func (q *LeaseQueue[T]) TakeLease() (*Lease[T], error) {
	lease, found, err := q.TryTakeLease()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrEmptyQueue
	}
	return lease, nil
}

func (q *LeaseQueue[T]) TryPeek() (T, bool, error) {
	return q.first(domain.LockShared, false)
}

func (q *LeaseQueue[T]) TryDequeue() (T, bool, error) {
	return q.first(domain.LockExclusive, true)
}

func (q *LeaseQueue[T]) Peek() (T, error) {
	return strict(q.TryPeek())
}

func (q *LeaseQueue[T]) Dequeue() (T, error) {
	return strict(q.TryDequeue())
}

// RemoveAtBookmark deletes the record a bookmark points at. A missing record
// is not an error. A record locked by another transaction yields
// ErrRecordLocked and the caller may retry.
func (q *LeaseQueue[T]) RemoveAtBookmark(bookmark domain.Bookmark) error {
	return q.atBookmark(bookmark, func(c ports.Cursor) error {
		return c.Delete()
	})
}

// ReclaimExpired makes every record whose lease has run out available again
// and reports how many were reclaimed.
func (q *LeaseQueue[T]) ReclaimExpired() (int, error) {
	var total int
	for {
		n, err := q.reclaimBatch()
		total += n
		if err != nil {
			return total, err
		}
		if n < reclaimBatchSize {
			break
		}
	}

	if total > 0 {
		q.metrics.IncrCounter(observability.MetricReclaimed, float32(total))
	}
	return total, nil
}

func (q *LeaseQueue[T]) Close() error {
	if q.reaper != nil {
		q.reaper.Stop()
	}
	return q.close()
}

func (q *LeaseQueue[T]) first(mode domain.LockMode, remove bool) (T, bool, error) {
	start := time.Now()

	var (
		item  T
		found bool
	)
	err := q.run(func(tx ports.Transaction) error {
		ok, err := q.scan(tx, mode, func(c ports.Cursor) error {
			decoded, err := q.decode(c)
			if err != nil {
				return err
			}
			if remove {
				if err := c.Delete(); err != nil {
					return err
				}
			}
			item = decoded
			return nil
		})
		if err != nil || !ok {
			return err
		}
		if err := tx.Commit(q.settings.CommitMode); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !found {
		q.metrics.IncrCounter(observability.MetricEmpty, 1)
		var zero T
		return zero, false, nil
	}

	if remove {
		q.metrics.IncrCounter(observability.MetricDequeued, 1)
		q.metrics.MeasureSince(observability.MetricDequeueLatency, start)
	} else {
		q.metrics.IncrCounter(observability.MetricPeeked, 1)
	}
	return item, true, nil
}

// scan walks the lease index in (lease-expiry, id) order and calls visit on
// the first row it can lock in mode. Rows with no lease sort first, then
// leased rows by expiry, so in expiry-aware mode the walk ends at the first
// lease that is still running.
func (q *LeaseQueue[T]) scan(tx ports.Transaction, mode domain.LockMode, visit func(ports.Cursor) error) (bool, error) {
	c, err := tx.Scan(domain.IndexLease)
	if err != nil {
		return false, err
	}
	defer c.Close()

	now := q.now()
	for c.Next() {
		if q.settings.ScanMode == domain.ScanExpiryAware {
			if expiry, leased := c.LeaseExpiry(); leased && expiry.After(now) {
				break
			}
		}

		locked, err := c.TryLock(mode)
		if err != nil {
			return false, err
		}
		if !locked {
			q.metrics.IncrCounter(observability.MetricLockSkipped, 1)
			continue
		}

		if err := visit(c); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, c.Err()
}

func (q *LeaseQueue[T]) reclaimBatch() (int, error) {
	var n int
	err := q.run(func(tx ports.Transaction) error {
		c, err := tx.ScanLeased()
		if err != nil {
			return err
		}
		defer c.Close()

		now := q.now()
		for n < reclaimBatchSize && c.Next() {
			expiry, leased := c.LeaseExpiry()
			if !leased {
				continue
			}
			if expiry.After(now) {
				break
			}

			locked, err := c.TryLock(domain.LockExclusive)
			if err != nil {
				return err
			}
			if !locked {
				continue
			}
			if err := c.ClearLeaseExpiry(); err != nil {
				return err
			}
			n++
		}
		if err := c.Err(); err != nil {
			return err
		}
		return tx.Commit(q.settings.CommitMode)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// atBookmark locks the record behind bookmark exclusively and runs fn on
// it. A bookmark that no longer resolves is a no-op.
func (q *LeaseQueue[T]) atBookmark(bookmark domain.Bookmark, fn func(ports.Cursor) error) error {
	return q.run(func(tx ports.Transaction) error {
		c, found, err := tx.Seek(bookmark)
		if err != nil || !found {
			return err
		}
		defer c.Close()

		if !c.Next() {
			return c.Err()
		}
		locked, err := c.TryLock(domain.LockExclusive)
		if err != nil {
			return err
		}
		if !locked {
			return domain.NewRecordLockedError(bookmark.String())
		}

		if err := fn(c); err != nil {
			return err
		}
		return tx.Commit(q.settings.CommitMode)
	})
}

// heldBy reports whether the cursor row still carries the lease that
// expires at expiresAt.
func heldBy(c ports.Cursor, expiresAt time.Time) bool {
	expiry, leased := c.LeaseExpiry()
	return leased && expiry.UnixNano() == expiresAt.UnixNano()
}
