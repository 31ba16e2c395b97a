package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/tabq/internal/ports"
)

// Pool keeps idle store sessions for reuse. Acquire never waits on other
// callers; when nothing is idle a new session is opened, so the pool grows
// with peak concurrency. Any idle session may serve any caller.
type Pool struct {
	store  ports.TableStore
	logger *slog.Logger

	mu      sync.Mutex
	idle    []ports.Session
	open    int
	drained bool
}

type Stats struct {
	Idle int
	Open int
}

// transactional is implemented by sessions that can report an unfinished
// transaction. Such sessions are closed on release instead of pooled.
type transactional interface {
	InTransaction() bool
}

var _ ports.SessionPool = (*Pool)(nil)

func New(store ports.TableStore, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		store:  store,
		logger: logger.With("component", "session-pool"),
	}
}

func (p *Pool) Acquire() (ports.Session, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return s, nil
	}
	p.open++
	p.mu.Unlock()

	s, err := p.store.OpenSession()
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		return nil, fmt.Errorf("open session: %w", err)
	}

	p.logger.Debug("opened session", "session_id", s.ID())
	return s, nil
}

func (p *Pool) Release(s ports.Session) {
	if s == nil {
		return
	}

	if tx, ok := s.(transactional); ok && tx.InTransaction() {
		p.logger.Warn("session released with an open transaction, closing it", "session_id", s.ID())
		p.discard(s)
		return
	}

	p.mu.Lock()
	if p.drained {
		p.mu.Unlock()
		p.discard(s)
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

// With lends a session to fn and returns it on every exit path.
func (p *Pool) With(fn func(ports.Session) error) error {
	s, err := p.Acquire()
	if err != nil {
		return err
	}
	defer p.Release(s)

	return fn(s)
}

// DrainAll closes every idle session. Sessions released afterwards are
// closed instead of pooled. It must not run concurrently with operations
// that still hold sessions.
func (p *Pool) DrainAll() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.drained = true
	p.open -= len(idle)
	p.mu.Unlock()

	var errs []error
	for _, s := range idle {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	if len(idle) > 0 {
		p.logger.Debug("drained session pool", "closed", len(idle))
	}
	return errors.Join(errs...)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: len(p.idle), Open: p.open}
}

func (p *Pool) discard(s ports.Session) {
	p.mu.Lock()
	p.open--
	p.mu.Unlock()

	if err := s.Close(); err != nil {
		p.logger.Error("failed to close session", "session_id", s.ID(), "error", err)
	}
}
