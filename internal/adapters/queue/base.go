package queue

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eleven-am/tabq/internal/adapters/observability"
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
)

// Settings are fixed for the lifetime of a queue.
type Settings struct {
	CommitMode    domain.CommitMode
	ScanMode      domain.ScanMode
	LeaseDuration time.Duration
	ReapInterval  time.Duration
	Metrics       ports.QueueMetrics
	Clock         func() time.Time
}

func SettingsFromConfig(cfg *domain.Config, metrics ports.QueueMetrics) Settings {
	return Settings{
		CommitMode:    cfg.CommitMode,
		ScanMode:      cfg.ScanMode,
		LeaseDuration: cfg.LeaseDuration,
		ReapInterval:  cfg.ReapInterval,
		Metrics:       metrics,
	}
}

type base[T any] struct {
	pool     ports.SessionPool
	codec    ports.Codec[T]
	metrics  ports.QueueMetrics
	logger   *slog.Logger
	settings Settings
	closed   atomic.Bool
}

func (b *base[T]) setup(pool ports.SessionPool, codec ports.Codec[T], settings Settings, logger *slog.Logger, component string) {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Metrics == nil {
		settings.Metrics = observability.Noop{}
	}
	if settings.Clock == nil {
		settings.Clock = time.Now
	}
	if settings.LeaseDuration <= 0 {
		settings.LeaseDuration = domain.DefaultLeaseDuration
	}
	if settings.CommitMode == 0 {
		settings.CommitMode = domain.CommitLazy
	}
	if settings.ScanMode == 0 {
		settings.ScanMode = domain.ScanExpiryAware
	}

	b.pool = pool
	b.codec = codec
	b.metrics = settings.Metrics
	b.logger = logger.With("component", component, "codec", codec.Name())
	b.settings = settings
}

// run executes fn inside one transaction on a pooled session. The
// transaction is rolled back unless fn committed it, and the session goes
// back to the pool on every path.
func (b *base[T]) run(fn func(tx ports.Transaction) error) error {
	if b.closed.Load() {
		return domain.ErrClosed
	}

	return b.pool.With(func(s ports.Session) error {
		tx, err := s.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		return fn(tx)
	})
}

func (b *base[T]) enqueue(item T) error {
	payload, err := b.codec.Encode(item)
	if err != nil {
		return err
	}

	start := time.Now()
	err = b.run(func(tx ports.Transaction) error {
		if _, _, err := tx.Insert(payload); err != nil {
			return err
		}
		return tx.Commit(b.settings.CommitMode)
	})
	if err != nil {
		return err
	}

	b.metrics.IncrCounter(observability.MetricEnqueued, 1)
	b.metrics.MeasureSince(observability.MetricEnqueueLatency, start)
	return nil
}

// count walks every record in id order. It is O(n) and meant for
// diagnostics.
func (b *base[T]) count() (int, error) {
	var n int
	err := b.run(func(tx ports.Transaction) error {
		c, err := tx.Scan(domain.IndexPrimary)
		if err != nil {
			return err
		}
		defer c.Close()

		for c.Next() {
			n++
		}
		if err := c.Err(); err != nil {
			return err
		}
		return tx.Commit(b.settings.CommitMode)
	})
	if err != nil {
		return 0, err
	}

	b.metrics.SetGauge(observability.MetricDepth, float32(n))
	return n, nil
}

func (b *base[T]) decode(c ports.Cursor) (T, error) {
	payload, err := c.Payload()
	if err != nil {
		var zero T
		return zero, err
	}
	return b.codec.Decode(payload)
}

func (b *base[T]) close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pool.DrainAll()
}

func (b *base[T]) now() time.Time {
	return b.settings.Clock()
}
