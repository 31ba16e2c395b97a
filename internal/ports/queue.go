package ports

import "time"

// Codec turns queue items into the bytes stored in a record's payload column.
type Codec[T any] interface {
	Name() string
	Encode(item T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// SessionPool lends store sessions to queue operations.
type SessionPool interface {
	Acquire() (Session, error)
	Release(session Session)
	With(fn func(Session) error) error
	DrainAll() error
}

// QueueMetrics receives queue events. Implementations must be safe for
// concurrent use.
type QueueMetrics interface {
	IncrCounter(name string, value float32)
	MeasureSince(name string, start time.Time)
	SetGauge(name string, value float32)
}
