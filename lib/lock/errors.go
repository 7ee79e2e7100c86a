package lock

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Types
// --------------------------------------------------------------------------

// LockNotGrantedError is returned when a lock could not be acquired or
// renewed: contention was resolved against the caller, the overall wait
// time elapsed, or a precondition on the cached item state failed.
// This outcome is non-fatal; it is the caller's decision to retry or
// give up.
type LockNotGrantedError struct {
	Msg   string
	Cause error
}

func (e *LockNotGrantedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("lock not granted: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("lock not granted: %s", e.Msg)
}

func (e *LockNotGrantedError) Unwrap() error {
	return e.Cause
}

func newLockNotGranted(format string, args ...interface{}) *LockNotGrantedError {
	return &LockNotGrantedError{Msg: fmt.Sprintf(format, args...)}
}

// LockCurrentlyUnavailableError is the immediate-fail contention outcome:
// the lock is held, unexpired and not released, and the caller asked to
// skip the blocking wait. It is a distinct subtype of "not granted" so
// callers can choose to back off instead of retrying immediately.
type LockCurrentlyUnavailableError struct {
	Msg string
}

func (e *LockCurrentlyUnavailableError) Error() string {
	return fmt.Sprintf("lock currently unavailable: %s", e.Msg)
}

func newLockCurrentlyUnavailable(format string, args ...interface{}) *LockCurrentlyUnavailableError {
	return &LockCurrentlyUnavailableError{Msg: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

// IsLockNotGranted reports whether err is any not-granted outcome.
// This includes LockCurrentlyUnavailableError, which is a subtype.
func IsLockNotGranted(err error) bool {
	lng := &LockNotGrantedError{}
	if errors.As(err, &lng) {
		return true
	}
	return IsLockCurrentlyUnavailable(err)
}

// IsLockCurrentlyUnavailable reports whether err is the immediate-fail
// contention outcome.
func IsLockCurrentlyUnavailable(err error) bool {
	lcu := &LockCurrentlyUnavailableError{}
	return errors.As(err, &lcu)
}
