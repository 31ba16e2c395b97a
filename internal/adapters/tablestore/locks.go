package tablestore

import (
	"sync"

	"github.com/eleven-am/tabq/internal/domain"
)

type rowLock struct {
	exclusive uint64
	shared    map[uint64]struct{}
}

func (l *rowLock) empty() bool {
	return l.exclusive == 0 && len(l.shared) == 0
}

// lockManager is the store's row lock table. Owners are transaction ids and
// every call returns immediately.
type lockManager struct {
	mu   sync.Mutex
	rows map[uint64]*rowLock
}

func newLockManager() *lockManager {
	return &lockManager{rows: make(map[uint64]*rowLock)}
}

func (m *lockManager) tryLock(row, owner uint64, mode domain.LockMode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.rows[row]
	if !ok {
		l = &rowLock{}
		m.rows[row] = l
	}

	switch mode {
	case domain.LockExclusive:
		if l.exclusive == owner {
			return true
		}
		if l.exclusive != 0 {
			return false
		}
		for holder := range l.shared {
			if holder != owner {
				return false
			}
		}
		l.exclusive = owner
		delete(l.shared, owner)
		return true
	default:
		if l.exclusive == owner {
			return true
		}
		if l.exclusive != 0 {
			return false
		}
		if l.shared == nil {
			l.shared = make(map[uint64]struct{})
		}
		l.shared[owner] = struct{}{}
		return true
	}
}

func (m *lockManager) unlock(row, owner uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.rows[row]
	if !ok {
		return
	}
	if l.exclusive == owner {
		l.exclusive = 0
	}
	delete(l.shared, owner)
	if l.empty() {
		delete(m.rows, row)
	}
}

func (m *lockManager) holders(row uint64) (exclusive uint64, shared int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.rows[row]
	if !ok {
		return 0, 0
	}
	return l.exclusive, len(l.shared)
}

func (m *lockManager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
