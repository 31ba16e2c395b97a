package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type reclaimer interface {
	ReclaimExpired() (int, error)
}

// Reaper periodically returns expired leases to the queue.
type Reaper struct {
	target   reclaimer
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewReaper(target reclaimer, interval time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		target:   target,
		interval: interval,
		logger:   logger.With("component", "reaper"),
	}
}

func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true

	r.wg.Add(1)
	go r.loop(r.ctx)

	r.logger.Debug("reaper started", "interval", r.interval)
}

func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("reaper stopped")
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	n, err := r.target.ReclaimExpired()
	if err != nil {
		r.logger.Warn("reclaim expired leases failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("reclaimed expired leases", "count", n)
	}
}
