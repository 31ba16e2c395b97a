package ports

import (
	"io"
	"time"

	"github.com/eleven-am/tabq/internal/domain"
)

// TableStore is the transactional ordered table store the queues are layered
// on. One store serves one table of queue records.
type TableStore interface {
	OpenSession() (Session, error)
	Close() error
}

// Session is a connection to the store. A session runs at most one
// transaction at a time and is not safe for concurrent use.
type Session interface {
	ID() string
	Begin() (Transaction, error)
	Close() error
}

// Transaction holds row locks until Commit or Rollback.
type Transaction interface {
	Insert(payload []byte) (id uint64, bookmark domain.Bookmark, err error)
	Scan(index domain.IndexKind) (Cursor, error)
	// ScanLeased walks the lease index starting at the first record whose
	// lease expiry is set.
	ScanLeased() (Cursor, error)
	Seek(bookmark domain.Bookmark) (Cursor, bool, error)
	Commit(mode domain.CommitMode) error
	Rollback() error
}

// Cursor walks rows in index order. Next must be called before the first row
// is available.
type Cursor interface {
	Next() bool
	Err() error

	ID() uint64
	LeaseExpiry() (time.Time, bool)
	Bookmark() domain.Bookmark

	// TryLock never waits. A false result means another transaction holds
	// an incompatible lock or the row changed underneath the cursor.
	TryLock(mode domain.LockMode) (bool, error)

	Payload() ([]byte, error)
	// PayloadReader reads the same bytes as Payload. The value is loaded in
	// full before the reader is returned.
	PayloadReader() (io.Reader, error)

	SetLeaseExpiry(t time.Time) error
	ClearLeaseExpiry() error
	Delete() error

	Close()
}
