package queue

import (
	"sync"
	"time"

	"github.com/eleven-am/tabq/internal/adapters/observability"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
	"github.com/google/uuid"
)

// Lease is a claim on one record. The record stays in the queue until
// MarkCompleted removes it or the lease expires.
type Lease[T any] struct {
	ID        uuid.UUID
	Item      T
	Bookmark  domain.Bookmark
	RecordID  uint64
	ExpiresAt time.Time

	queue *LeaseQueue[T]
	mu    sync.Mutex
	done  bool
}

// MarkCompleted removes the leased record. Calling it again does nothing.
// Unlike Release and Extend it does not check ownership: a holder whose
// lease expired and was taken by another caller still removes the record.
// Callers that cannot tolerate that should Extend first, which fails with
// ErrLeaseLost once the lease has moved on.
func (l *Lease[T]) MarkCompleted() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return nil
	}
	if err := l.queue.RemoveAtBookmark(l.Bookmark); err != nil {
		return err
	}
	l.done = true

	l.queue.metrics.IncrCounter(observability.MetricCompleted, 1)
	l.queue.logger.Debug("lease completed", "lease_id", l.ID, "record_id", l.RecordID)
	return nil
}

// Release gives the record back to the queue before the lease runs out.
func (l *Lease[T]) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return nil
	}
	err := l.held(func(c ports.Cursor) error {
		return c.ClearLeaseExpiry()
	})
	if err != nil {
		return err
	}
	l.done = true

	l.queue.metrics.IncrCounter(observability.MetricReleased, 1)
	l.queue.logger.Debug("lease released", "lease_id", l.ID, "record_id", l.RecordID)
	return nil
}

// Extend moves the expiry to now+d. It fails with ErrLeaseLost once the
// record has expired and been claimed again, or was removed.
func (l *Lease[T]) Extend(d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return domain.ErrLeaseLost
	}

	expiresAt := l.queue.now().Add(d)
	err := l.held(func(c ports.Cursor) error {
		return c.SetLeaseExpiry(expiresAt)
	})
	if err != nil {
		return err
	}
	l.ExpiresAt = time.Unix(0, expiresAt.UnixNano())
	return nil
}

func (l *Lease[T]) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Lease[T]) held(fn func(ports.Cursor) error) error {
	found := false
	err := l.queue.atBookmark(l.Bookmark, func(c ports.Cursor) error {
		found = true
		if !heldBy(c, l.ExpiresAt) {
			return domain.ErrLeaseLost
		}
		return fn(c)
	})
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrLeaseLost
	}
	return nil
}
