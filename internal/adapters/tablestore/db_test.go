package tablestore

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/tabq/internal/domain"
	"github.com/eleven-am/tabq/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, dir string) *DB {
	t.Helper()

	cfg := &domain.Config{
		Dir:               dir,
		InMemory:          dir == "",
		Table:             "test",
		SequenceBandwidth: 16,
	}
	db, err := Open(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func begin(t *testing.T, db *DB) (ports.Session, ports.Transaction) {
	t.Helper()

	s, err := db.OpenSession()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tx, err := s.Begin()
	require.NoError(t, err)
	return s, tx
}

func insert(t *testing.T, db *DB, mode domain.CommitMode, payloads ...string) []domain.Bookmark {
	t.Helper()

	_, tx := begin(t, db)
	bookmarks := make([]domain.Bookmark, 0, len(payloads))
	for _, p := range payloads {
		_, bm, err := tx.Insert([]byte(p))
		require.NoError(t, err)
		bookmarks = append(bookmarks, bm)
	}
	require.NoError(t, tx.Commit(mode))
	return bookmarks
}

func scanPayloads(t *testing.T, db *DB, index domain.IndexKind) []string {
	t.Helper()

	_, tx := begin(t, db)
	defer tx.Rollback()

	c, err := tx.Scan(index)
	require.NoError(t, err)
	defer c.Close()

	var out []string
	for c.Next() {
		payload, err := c.Payload()
		require.NoError(t, err)
		out = append(out, string(payload))
	}
	require.NoError(t, c.Err())
	return out
}

func TestDB_InsertScansInIDOrder(t *testing.T) {
	db := openTestDB(t, "")

	insert(t, db, domain.CommitLazy, "a", "b")
	insert(t, db, domain.CommitLazy, "c")

	assert.Equal(t, []string{"a", "b", "c"}, scanPayloads(t, db, domain.IndexPrimary))
	assert.Equal(t, []string{"a", "b", "c"}, scanPayloads(t, db, domain.IndexLease))
}

func TestDB_LeaseIndexFollowsExpiry(t *testing.T) {
	db := openTestDB(t, "")
	insert(t, db, domain.CommitLazy, "a", "b")

	expiresAt := time.Now().Add(time.Hour)
	_, tx := begin(t, db)
	c, err := tx.Scan(domain.IndexLease)
	require.NoError(t, err)
	require.True(t, c.Next())

	_, leased := c.LeaseExpiry()
	assert.False(t, leased)

	ok, err := c.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.SetLeaseExpiry(expiresAt))
	require.NoError(t, tx.Commit(domain.CommitLazy))

	assert.Equal(t, []string{"b", "a"}, scanPayloads(t, db, domain.IndexLease))
	assert.Equal(t, []string{"a", "b"}, scanPayloads(t, db, domain.IndexPrimary))

	_, tx = begin(t, db)
	defer tx.Rollback()
	leasedCursor, err := tx.ScanLeased()
	require.NoError(t, err)

	require.True(t, leasedCursor.Next())
	expiry, ok := leasedCursor.LeaseExpiry()
	require.True(t, ok)
	assert.Equal(t, expiresAt.UnixNano(), expiry.UnixNano())
	payload, err := leasedCursor.Payload()
	require.NoError(t, err)
	assert.Equal(t, "a", string(payload))
	assert.False(t, leasedCursor.Next())
}

func TestDB_ClearLeaseExpiryRestoresPosition(t *testing.T) {
	db := openTestDB(t, "")
	bookmarks := insert(t, db, domain.CommitLazy, "a", "b")

	for _, step := range []func(ports.Cursor) error{
		func(c ports.Cursor) error { return c.SetLeaseExpiry(time.Now().Add(time.Minute)) },
		func(c ports.Cursor) error { return c.ClearLeaseExpiry() },
	} {
		_, tx := begin(t, db)
		c, found, err := tx.Seek(bookmarks[0])
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, c.Next())

		ok, err := c.TryLock(domain.LockExclusive)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, step(c))
		require.NoError(t, tx.Commit(domain.CommitLazy))
	}

	assert.Equal(t, []string{"a", "b"}, scanPayloads(t, db, domain.IndexLease))
}

func TestDB_TryLockContention(t *testing.T) {
	db := openTestDB(t, "")
	insert(t, db, domain.CommitLazy, "a")

	_, tx1 := begin(t, db)
	c1, err := tx1.Scan(domain.IndexPrimary)
	require.NoError(t, err)
	require.True(t, c1.Next())
	ok, err := c1.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	require.True(t, ok)

	_, tx2 := begin(t, db)
	c2, err := tx2.Scan(domain.IndexPrimary)
	require.NoError(t, err)
	require.True(t, c2.Next())

	ok, err = c2.TryLock(domain.LockShared)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c2.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx1.Rollback())

	ok, err = c2.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tx2.Rollback())
	assert.Equal(t, 0, db.locks.size())
}

func TestDB_SharedLocksCoexist(t *testing.T) {
	db := openTestDB(t, "")
	insert(t, db, domain.CommitLazy, "a")

	var txs []ports.Transaction
	for i := 0; i < 3; i++ {
		_, tx := begin(t, db)
		c, err := tx.Scan(domain.IndexLease)
		require.NoError(t, err)
		require.True(t, c.Next())

		ok, err := c.TryLock(domain.LockShared)
		require.NoError(t, err)
		assert.True(t, ok)
		txs = append(txs, tx)
	}

	_, shared := db.locks.holders(1)
	assert.Equal(t, 3, shared)

	for _, tx := range txs {
		require.NoError(t, tx.Commit(domain.CommitLazy))
	}
	assert.Equal(t, 0, db.locks.size())
}

func TestDB_TryLockRevalidatesAgainstLatestCommit(t *testing.T) {
	db := openTestDB(t, "")
	insert(t, db, domain.CommitLazy, "a", "b")

	_, stale := begin(t, db)
	sc, err := stale.Scan(domain.IndexLease)
	require.NoError(t, err)
	require.True(t, sc.Next())
	require.Equal(t, uint64(1), sc.ID())

	_, tx := begin(t, db)
	c, err := tx.Scan(domain.IndexLease)
	require.NoError(t, err)
	require.True(t, c.Next())
	ok, err := c.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.SetLeaseExpiry(time.Now().Add(time.Minute)))
	require.NoError(t, tx.Commit(domain.CommitLazy))

	ok, err = sc.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	assert.False(t, ok, "row moved in the lease index after the scan started")

	require.True(t, sc.Next())
	require.Equal(t, uint64(2), sc.ID())

	_, deleter := begin(t, db)
	dc, err := deleter.Scan(domain.IndexPrimary)
	require.NoError(t, err)
	require.True(t, dc.Next())
	require.True(t, dc.Next())
	ok, err = dc.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, dc.Delete())
	require.NoError(t, deleter.Commit(domain.CommitLazy))

	ok, err = sc.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	assert.False(t, ok, "row was deleted after the scan started")
	require.NoError(t, stale.Rollback())
}

func TestDB_SeekAndDelete(t *testing.T) {
	db := openTestDB(t, "")
	bookmarks := insert(t, db, domain.CommitLazy, "a", "b")

	_, tx := begin(t, db)
	c, found, err := tx.Seek(bookmarks[1])
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, c.Next())
	assert.Equal(t, bookmarks[1], c.Bookmark())

	r, err := c.PayloadReader()
	require.NoError(t, err)
	payload, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "b", string(payload))

	ok, err := c.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.Delete())
	assert.False(t, c.Next())
	require.NoError(t, tx.Commit(domain.CommitLazy))

	_, tx = begin(t, db)
	defer tx.Rollback()
	_, found, err = tx.Seek(bookmarks[1])
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = tx.Seek(domain.Bookmark{0x01})
	assert.Error(t, err)

	assert.Equal(t, []string{"a"}, scanPayloads(t, db, domain.IndexPrimary))
	assert.Equal(t, []string{"a"}, scanPayloads(t, db, domain.IndexLease))
}

func TestDB_ReopenKeepsOrder(t *testing.T) {
	dir := t.TempDir()

	db := openTestDB(t, dir)
	insert(t, db, domain.CommitLazy, "a", "b")
	insert(t, db, domain.CommitSync, "c")
	require.NoError(t, db.Close())

	db = openTestDB(t, dir)
	insert(t, db, domain.CommitLazy, "d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, scanPayloads(t, db, domain.IndexPrimary))
}

func TestSession_OneTransactionAtATime(t *testing.T) {
	db := openTestDB(t, "")
	insert(t, db, domain.CommitLazy, "a")

	s, tx := begin(t, db)
	_, err := s.Begin()
	assert.ErrorIs(t, err, domain.ErrTransactionPending)
	assert.True(t, s.(*session).InTransaction())

	c, err := tx.Scan(domain.IndexPrimary)
	require.NoError(t, err)
	require.True(t, c.Next())
	ok, err := c.TryLock(domain.LockExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, db.locks.size())

	require.NoError(t, s.Close())
	assert.Equal(t, 0, db.locks.size())

	_, err = s.Begin()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestTransaction_FinishedRejectsWork(t *testing.T) {
	db := openTestDB(t, "")

	_, tx := begin(t, db)
	require.NoError(t, tx.Commit(domain.CommitLazy))

	_, _, err := tx.Insert([]byte("a"))
	assert.ErrorIs(t, err, domain.ErrTransactionDone)
	_, err = tx.Scan(domain.IndexPrimary)
	assert.ErrorIs(t, err, domain.ErrTransactionDone)
	assert.ErrorIs(t, tx.Commit(domain.CommitLazy), domain.ErrTransactionDone)
	assert.NoError(t, tx.Rollback())
}

func TestDB_ClosedRejectsSessions(t *testing.T) {
	db := openTestDB(t, "")
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.OpenSession()
	assert.True(t, domain.IsStoreUnavailable(err))
}
