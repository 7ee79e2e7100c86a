package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IRecordStore is the generic interface for the backing store of the lock
// client. A record store persists one LockRecord per lock and supports
// atomic conditional writes. The conditional write is the single
// serialization point of the lock protocol: a store that cannot evaluate
// the condition and apply the mutation atomically is unsuitable as a
// backend.
//
// All write operations return only an error (nil on success), read
// operations return the requested data along with an error (nil on success).
// A failed write condition is reported as a *Error with RetCConditionFailed
// so that callers can tell contention apart from transport failures.
type IRecordStore interface {
	// GetRecord returns the record stored under the given storage key.
	// The boolean return value indicates whether a record was found.
	GetRecord(key string) (rec *LockRecord, found bool, err error)

	// PutRecord writes the full record, replacing any previous row, if the
	// condition holds against the currently stored state.
	PutRecord(rec *LockRecord, cond WriteCondition) (err error)

	// UpdateRecord applies a partial update to the record stored under the
	// given key if the condition holds. Updating an absent record fails the
	// condition.
	UpdateRecord(key string, upd RecordUpdate, cond WriteCondition) (err error)

	// DeleteRecord removes the record stored under the given key if the
	// condition holds. Deleting an absent record fails the condition unless
	// the condition is CondNone.
	DeleteRecord(key string, cond WriteCondition) (err error)

	// TableExists reports whether the backing table/shard is usable.
	TableExists() (ok bool, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("RecordStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewErrorf creates a new store Error with the given code and a formatted
// message.
func NewErrorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation (programmer error, never retried).
	RetCConditionFailed                     // 4: Write condition did not hold against the stored state.
	RetCUnavailable                         // 5: Store temporarily unreachable (network/throughput).
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConditionFailed:
		return "ConditionFailed"
	case RetCUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Error Predicates
// --------------------------------------------------------------------------

// hasCode reports whether err is (or wraps) a *Error with the given code.
func hasCode(err error, code RetCode) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// IsConditionFailed reports whether err signals a failed write condition.
func IsConditionFailed(err error) bool {
	return hasCode(err, RetCConditionFailed)
}

// IsUnavailable reports whether err signals a transient store outage.
func IsUnavailable(err error) bool {
	return hasCode(err, RetCUnavailable)
}

// IsInvalidOperation reports whether err signals a malformed request.
func IsInvalidOperation(err error) bool {
	return hasCode(err, RetCInvalidOperation)
}
