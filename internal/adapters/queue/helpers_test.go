package queue

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/tabq/internal/adapters/codec"
	"github.com/eleven-am/tabq/internal/adapters/pool"
	"github.com/eleven-am/tabq/internal/adapters/tablestore"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openStore(t *testing.T, dir string) *tablestore.DB {
	t.Helper()

	cfg := &domain.Config{
		Dir:               dir,
		InMemory:          dir == "",
		Table:             "jobs",
		SequenceBandwidth: 64,
	}
	store, err := tablestore.Open(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSimpleQueue(t *testing.T, store *tablestore.DB, settings Settings) *SimpleQueue[int] {
	t.Helper()

	q := NewSimpleQueue[int](pool.New(store, nil), codec.JSON[int]{}, settings, nil)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func newLeaseQueue(t *testing.T, store *tablestore.DB, settings Settings) *LeaseQueue[string] {
	t.Helper()

	q := NewLeaseQueue[string](pool.New(store, nil), codec.NewMsgpack[string](), settings, nil)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func enqueueAll[T any](t *testing.T, enqueue func(T) error, items ...T) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, enqueue(item))
	}
}
