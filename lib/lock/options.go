package lock

import (
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

// --------------------------------------------------------------------------
// Acquire Options
// --------------------------------------------------------------------------

// SessionMonitorOptions requests a per-lock background watcher that invokes
// Callback once the remaining lease time drops below SafeTime. The watcher
// never renews the lock itself; renewal stays with the heartbeat scheduler.
type SessionMonitorOptions struct {
	// SafeTime is the lead time before lease expiry at which the callback
	// fires. Must be shorter than the lock's lease duration.
	SafeTime time.Duration

	// Callback is invoked once per arming from the monitor's goroutine.
	Callback func()
}

// AcquireLockOptions is the configuration bundle for a single acquisition
// attempt. Only Key is required; the zero value of every other field selects
// the documented default.
type AcquireLockOptions struct {
	// Key is the partition key identifying the resource (required).
	Key string

	// SortKey optionally extends the resource identity; the (Key, SortKey)
	// pair uniquely identifies a lock.
	SortKey string

	// Data is an opaque payload stored alongside the lock.
	Data []byte

	// ReplaceData forces the stored payload to become exactly Data, even if
	// Data is nil. When unset, a nil Data carries the existing record's
	// payload over.
	ReplaceData bool

	// DeleteLockOnRelease makes release remove the row entirely instead of
	// marking it released.
	DeleteLockOnRelease bool

	// AcquireOnlyIfLockAlreadyExists fails the acquisition with
	// LockNotGrantedError when no record exists for the key.
	AcquireOnlyIfLockAlreadyExists bool

	// ShouldSkipBlockingWait disables the poll/retry loop: contention fails
	// immediately with LockCurrentlyUnavailableError (held and unexpired) or
	// LockNotGrantedError (lost a write race).
	ShouldSkipBlockingWait bool

	// RefreshPeriod is the sleep between polls of the contention loop.
	// Zero selects DefaultRefreshPeriod.
	RefreshPeriod time.Duration

	// MaxWaitTime bounds the total time spent polling before the acquisition
	// fails with LockNotGrantedError. Zero selects the lock's lease duration
	// plus two refresh periods, enough to wait out one abandoned holder.
	MaxWaitTime time.Duration

	// AcquireReleasedLocksConsistently requires the record version number
	// observed on a released record to still hold at write time. When unset,
	// any released record is taken regardless of intervening rewrites.
	// Reclaiming an expired (non-released) record always requires the
	// observed version to still match; this option does not weaken that.
	AcquireReleasedLocksConsistently bool

	// UpdateExistingLockRecord reclaims an existing record with a partial
	// update instead of a destructive put, preserving attributes the caller
	// does not mention.
	UpdateExistingLockRecord bool

	// Attributes are additional opaque attributes stored with the record.
	Attributes map[string][]byte

	// SessionMonitor optionally attaches a lease-expiry watcher to the
	// acquired lock.
	SessionMonitor *SessionMonitorOptions
}

// validate rejects malformed option combinations before any store call.
func (o *AcquireLockOptions) validate(leaseDuration time.Duration) error {
	if o.Key == "" {
		return store.NewError(store.RetCInvalidOperation, "acquire: key must not be empty")
	}
	if o.SessionMonitor != nil {
		if o.SessionMonitor.Callback == nil {
			return store.NewError(store.RetCInvalidOperation, "acquire: session monitor requires a callback")
		}
		if o.SessionMonitor.SafeTime <= 0 || o.SessionMonitor.SafeTime >= leaseDuration {
			return store.NewErrorf(store.RetCInvalidOperation,
				"acquire: session monitor safe time %v must be positive and shorter than the lease duration %v",
				o.SessionMonitor.SafeTime, leaseDuration)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Heartbeat Options
// --------------------------------------------------------------------------

// SendHeartbeatOptions configures a single renewal of a held lock.
type SendHeartbeatOptions struct {
	// LockItem is the lock to renew (required).
	LockItem *LockItem

	// Data optionally replaces the stored payload. Mutually exclusive with
	// DeleteData.
	Data []byte

	// DeleteData removes the stored payload. Mutually exclusive with Data.
	DeleteData bool
}

// --------------------------------------------------------------------------
// Release Options
// --------------------------------------------------------------------------

// ReleaseLockOptions configures the release of a held lock. Whether the row
// is deleted or marked released was fixed at acquisition time
// (DeleteLockOnRelease).
type ReleaseLockOptions struct {
	// LockItem is the lock to release (required).
	LockItem *LockItem

	// Data optionally replaces the stored payload of a released-but-kept
	// record. Ignored when the lock was acquired with DeleteLockOnRelease.
	Data []byte

	// DeleteData removes the stored payload of a released-but-kept record.
	// Mutually exclusive with Data.
	DeleteData bool
}
