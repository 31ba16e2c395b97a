package domain

import (
	"errors"
	"fmt"
)

type StorageError struct {
	Type    ErrorType
	Key     string
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches any StorageError of the same Type, so callers can compare
// against the sentinel values below with errors.Is.
func (e *StorageError) Is(target error) bool {
	var other *StorageError
	if !errors.As(target, &other) {
		return false
	}
	return other.Type == e.Type
}

type ErrorType int

const (
	ErrorTypeStoreUnavailable ErrorType = iota
	ErrorTypeEmptyQueue
	ErrorTypeSerialization
	ErrorTypeRecordNotFound
	ErrorTypeRecordLocked
	ErrorTypeLeaseLost
	ErrorTypeClosed
	ErrorTypeCorrupted
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeStoreUnavailable:
		return "store_unavailable"
	case ErrorTypeEmptyQueue:
		return "empty_queue"
	case ErrorTypeSerialization:
		return "serialization"
	case ErrorTypeRecordNotFound:
		return "record_not_found"
	case ErrorTypeRecordLocked:
		return "record_locked"
	case ErrorTypeLeaseLost:
		return "lease_lost"
	case ErrorTypeClosed:
		return "closed"
	case ErrorTypeCorrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

var (
	ErrStoreUnavailable = &StorageError{Type: ErrorTypeStoreUnavailable, Message: "store unavailable"}
	ErrEmptyQueue       = &StorageError{Type: ErrorTypeEmptyQueue, Message: "queue is empty"}
	ErrSerialization    = &StorageError{Type: ErrorTypeSerialization, Message: "serialization failed"}
	ErrRecordNotFound   = &StorageError{Type: ErrorTypeRecordNotFound, Message: "record not found"}
	ErrRecordLocked     = &StorageError{Type: ErrorTypeRecordLocked, Message: "record is locked by another transaction"}
	ErrLeaseLost        = &StorageError{Type: ErrorTypeLeaseLost, Message: "lease no longer held"}
	ErrClosed           = &StorageError{Type: ErrorTypeClosed, Message: "queue is closed"}
	ErrCorrupted        = &StorageError{Type: ErrorTypeCorrupted, Message: "corrupted record"}
)

var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrTransactionDone    = errors.New("transaction already finished")
	ErrSessionClosed      = errors.New("session closed")
	ErrTransactionPending = errors.New("session already has an open transaction")
)

func NewStoreUnavailableError(op string, err error) *StorageError {
	return &StorageError{
		Type:    ErrorTypeStoreUnavailable,
		Message: "store unavailable: " + op,
		Err:     err,
	}
}

func NewSerializationError(op string, err error) *StorageError {
	return &StorageError{
		Type:    ErrorTypeSerialization,
		Message: "serialization failed: " + op,
		Err:     err,
	}
}

func NewCorruptedError(key string, err error) *StorageError {
	return &StorageError{
		Type:    ErrorTypeCorrupted,
		Key:     key,
		Message: "corrupted record " + key,
		Err:     err,
	}
}

func NewRecordLockedError(key string) *StorageError {
	return &StorageError{
		Type:    ErrorTypeRecordLocked,
		Key:     key,
		Message: "record is locked by another transaction: " + key,
	}
}

func NewConfigError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsEmptyQueue(err error) bool {
	return errors.Is(err, ErrEmptyQueue)
}

func IsSerialization(err error) bool {
	return errors.Is(err, ErrSerialization)
}

func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

func IsRecordLocked(err error) bool {
	return errors.Is(err, ErrRecordLocked)
}

func IsLeaseLost(err error) bool {
	return errors.Is(err, ErrLeaseLost)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
