package tablestore

import (
	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
)

type session struct {
	id      string
	db      *DB
	current *transaction
	closed  bool
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Begin() (ports.Transaction, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if s.current != nil && !s.current.done {
		return nil, domain.ErrTransactionPending
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if s.db.closed {
		return nil, domain.NewStoreUnavailableError("begin transaction", domain.ErrClosed)
	}

	s.current = &transaction{
		id:    s.db.nextTxnID(),
		db:    s.db,
		btx:   s.db.db.NewTransaction(true),
		locks: make(map[uint64]domain.LockMode),
	}
	return s.current, nil
}

// Close rolls back any open transaction, which also drops its row locks.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.db.sessions.Add(-1)

	if s.current != nil && !s.current.done {
		return s.current.Rollback()
	}
	return nil
}

// InTransaction reports whether the session has an unfinished transaction.
func (s *session) InTransaction() bool {
	return s.current != nil && !s.current.done
}
