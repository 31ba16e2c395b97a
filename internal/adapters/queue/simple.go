package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/tabq/internal/adapters/observability"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
)

// SimpleQueue removes items as it hands them out. Mutations from one instance
// are serialized by a mutex. Row locks keep other instances on the same table
// apart, and in expiry-aware mode a record under a running lease is skipped.
type SimpleQueue[T any] struct {
	base[T]
	mu sync.RWMutex
}

func NewSimpleQueue[T any](pool ports.SessionPool, codec ports.Codec[T], settings Settings, logger *slog.Logger) *SimpleQueue[T] {
	q := &SimpleQueue[T]{}
	q.setup(pool, codec, settings, logger, "simple-queue")
	return q
}

func (q *SimpleQueue[T]) Enqueue(item T) error {
	return q.enqueue(item)
}

func (q *SimpleQueue[T]) Count() (int, error) {
	return q.count()
}

func (q *SimpleQueue[T]) TryDequeue() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.first(true)
}

func (q *SimpleQueue[T]) TryPeek() (T, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.first(false)
}

func (q *SimpleQueue[T]) Dequeue() (T, error) {
	return strict(q.TryDequeue())
}

func (q *SimpleQueue[T]) Peek() (T, error) {
	return strict(q.TryPeek())
}

func (q *SimpleQueue[T]) Close() error {
	return q.close()
}

func (q *SimpleQueue[T]) first(remove bool) (T, bool, error) {
	var (
		item  T
		found bool
	)

	mode := domain.LockShared
	if remove {
		mode = domain.LockExclusive
	}

	err := q.run(func(tx ports.Transaction) error {
		c, err := tx.Scan(domain.IndexPrimary)
		if err != nil {
			return err
		}
		defer c.Close()

		now := q.now()
		for c.Next() {
			if q.leased(c, now) {
				continue
			}

			locked, err := c.TryLock(mode)
			if err != nil {
				return err
			}
			if !locked {
				q.metrics.IncrCounter(observability.MetricLockSkipped, 1)
				continue
			}
			// the lock refreshed the row from the latest commit
			if q.leased(c, now) {
				continue
			}

			decoded, err := q.decode(c)
			if err != nil {
				return err
			}
			if remove {
				if err := c.Delete(); err != nil {
					return err
				}
			}
			if err := tx.Commit(q.settings.CommitMode); err != nil {
				return err
			}

			item, found = decoded, true
			return nil
		}
		return c.Err()
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	switch {
	case !found:
		q.metrics.IncrCounter(observability.MetricEmpty, 1)
	case remove:
		q.metrics.IncrCounter(observability.MetricDequeued, 1)
	default:
		q.metrics.IncrCounter(observability.MetricPeeked, 1)
	}
	return item, found, nil
}

// leased reports whether the cursor row is held by a lease that has not run
// out. Lock-only scans ignore lease expiry.
func (q *SimpleQueue[T]) leased(c ports.Cursor, now time.Time) bool {
	if q.settings.ScanMode != domain.ScanExpiryAware {
		return false
	}
	expiry, ok := c.LeaseExpiry()
	return ok && expiry.After(now)
}

// strict turns an empty Try result into ErrEmptyQueue.
func strict[T any](item T, found bool, err error) (T, error) {
	if err != nil {
		return item, err
	}
	if !found {
		return item, domain.ErrEmptyQueue
	}
	return item, nil
}
