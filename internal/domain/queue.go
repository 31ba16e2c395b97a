package domain

import (
	"encoding/hex"
	"time"

	"github.com/eleven-am/tabq/internal/xjson"
)

// Bookmark identifies a record's physical location in its table. It stays
// valid until the record is deleted.
type Bookmark []byte

func (b Bookmark) String() string {
	return hex.EncodeToString(b)
}

type CommitMode int

// The zero CommitMode means unset and is filled from the defaults.
const (
	// CommitLazy returns once the write is logically durable. The physical
	// flush may trail the call and be lost on abrupt termination.
	CommitLazy CommitMode = iota + 1
	CommitSync
)

func (m CommitMode) String() string {
	switch m {
	case CommitSync:
		return "sync"
	default:
		return "lazy"
	}
}

func ParseCommitMode(s string) (CommitMode, error) {
	switch s {
	case "", "lazy", "deferred":
		return CommitLazy, nil
	case "sync":
		return CommitSync, nil
	default:
		return CommitLazy, NewConfigError("commit_mode", "must be one of lazy|sync, got "+s)
	}
}

type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

func (m LockMode) String() string {
	if m == LockExclusive {
		return "exclusive"
	}
	return "shared"
}

type IndexKind int

const (
	IndexPrimary IndexKind = iota
	IndexLease
)

func (k IndexKind) String() string {
	if k == IndexLease {
		return "lease"
	}
	return "primary"
}

type ScanMode int

// The zero ScanMode means unset and is filled from the defaults.
const (
	// ScanExpiryAware stops the lease scan at the first record whose lease
	// has not yet expired.
	ScanExpiryAware ScanMode = iota + 1
	// ScanLockOnly skips only records that are locked right now.
	ScanLockOnly
)

func (m ScanMode) String() string {
	if m == ScanLockOnly {
		return "lock-only"
	}
	return "expiry-aware"
}

func ParseScanMode(s string) (ScanMode, error) {
	switch s {
	case "", "expiry-aware":
		return ScanExpiryAware, nil
	case "lock-only":
		return ScanLockOnly, nil
	default:
		return ScanExpiryAware, NewConfigError("scan_mode", "must be one of expiry-aware|lock-only, got "+s)
	}
}

// Record is the stored form of one queue row.
type Record struct {
	Payload     []byte `json:"payload"`
	LeaseExpiry *int64 `json:"lease_expiry"`
	EnqueuedAt  int64  `json:"enqueued_at"`
}

func NewRecord(payload []byte) *Record {
	return &Record{
		Payload:    payload,
		EnqueuedAt: time.Now().UnixNano(),
	}
}

func (r *Record) Expiry() (time.Time, bool) {
	if r.LeaseExpiry == nil {
		return time.Time{}, false
	}
	return time.Unix(0, *r.LeaseExpiry), true
}

func (r *Record) SetExpiry(t time.Time) {
	nanos := t.UnixNano()
	r.LeaseExpiry = &nanos
}

func (r *Record) ClearExpiry() {
	r.LeaseExpiry = nil
}

func (r *Record) ToBytes() ([]byte, error) {
	return xjson.Marshal(r)
}

func RecordFromBytes(data []byte) (*Record, error) {
	var record Record
	err := xjson.Unmarshal(data, &record)
	return &record, err
}
