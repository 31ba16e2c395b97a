package tablestore

import (
	"encoding/binary"
	"fmt"

	"github.com/eleven-am/tabq/internal/domain"
)

const (
	keyPrefixTable     = "t/"
	keySegmentRows     = "/r/"
	keySegmentLeaseIdx = "/i/lease/"
	keySegmentSequence = "/seq"
	idWidth            = 8
)

const (
	expiryUnset byte = 0x00
	expirySet   byte = 0x01
)

// keySpace lays one table out over the badger key range t/<table>/.
//
//	t/<table>/r/<id>                     row
//	t/<table>/i/lease/<expiry><id>       (lease-expiry, id) index, unset first
//	t/<table>/seq                        id sequence
type keySpace struct {
	rows       []byte
	leaseIndex []byte
	sequence   []byte
}

func newKeySpace(table string) keySpace {
	base := keyPrefixTable + table
	return keySpace{
		rows:       []byte(base + keySegmentRows),
		leaseIndex: []byte(base + keySegmentLeaseIdx),
		sequence:   []byte(base + keySegmentSequence),
	}
}

func (k keySpace) prefix(index domain.IndexKind) []byte {
	if index == domain.IndexLease {
		return k.leaseIndex
	}
	return k.rows
}

func (k keySpace) rowKey(id uint64) []byte {
	key := make([]byte, 0, len(k.rows)+idWidth)
	key = append(key, k.rows...)
	return binary.BigEndian.AppendUint64(key, id)
}

func (k keySpace) idFromRowKey(key []byte) (uint64, error) {
	if len(key) != len(k.rows)+idWidth {
		return 0, domain.NewCorruptedError(string(key), fmt.Errorf("row key length %d", len(key)))
	}
	return binary.BigEndian.Uint64(key[len(k.rows):]), nil
}

// leaseIndexKey orders unset expiries before any set one, then by expiry,
// then by id. The sign bit is flipped so pre-epoch times still sort first.
func (k keySpace) leaseIndexKey(id uint64, expiry *int64) []byte {
	key := make([]byte, 0, len(k.leaseIndex)+1+idWidth+idWidth)
	key = append(key, k.leaseIndex...)
	if expiry == nil {
		key = append(key, expiryUnset)
	} else {
		key = append(key, expirySet)
		key = binary.BigEndian.AppendUint64(key, uint64(*expiry)^(1<<63))
	}
	return binary.BigEndian.AppendUint64(key, id)
}

func (k keySpace) parseLeaseIndexKey(key []byte) (uint64, *int64, error) {
	if len(key) < len(k.leaseIndex)+1+idWidth {
		return 0, nil, domain.NewCorruptedError(string(key), fmt.Errorf("lease index key too short"))
	}
	rest := key[len(k.leaseIndex):]

	switch rest[0] {
	case expiryUnset:
		if len(rest) != 1+idWidth {
			return 0, nil, domain.NewCorruptedError(string(key), fmt.Errorf("lease index key length %d", len(key)))
		}
		return binary.BigEndian.Uint64(rest[1:]), nil, nil
	case expirySet:
		if len(rest) != 1+idWidth+idWidth {
			return 0, nil, domain.NewCorruptedError(string(key), fmt.Errorf("lease index key length %d", len(key)))
		}
		expiry := int64(binary.BigEndian.Uint64(rest[1:1+idWidth]) ^ (1 << 63))
		return binary.BigEndian.Uint64(rest[1+idWidth:]), &expiry, nil
	default:
		return 0, nil, domain.NewCorruptedError(string(key), fmt.Errorf("unknown expiry marker %x", rest[0]))
	}
}

func encodeBookmark(id uint64) domain.Bookmark {
	return binary.BigEndian.AppendUint64(make([]byte, 0, idWidth), id)
}

func decodeBookmark(bookmark domain.Bookmark) (uint64, error) {
	if len(bookmark) != idWidth {
		return 0, fmt.Errorf("invalid bookmark %s: want %d bytes, got %d", bookmark, idWidth, len(bookmark))
	}
	return binary.BigEndian.Uint64(bookmark), nil
}
