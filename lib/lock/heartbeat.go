package lock

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

// --------------------------------------------------------------------------
// Heartbeat / Renewal
// --------------------------------------------------------------------------

// SendHeartbeat renews a held lock. Preconditions are checked against the
// item's cached state, not a fresh read: a released item, an item whose
// lease window has already elapsed since the last confirmation, and an item
// owned by someone else all fail with LockNotGrantedError before any store
// call.
//
// The renewal write is keyed on the item's current record version number; on
// success the item receives a fresh version number and confirmation time. A
// failed condition check means the store no longer agrees that we hold the
// lock and also returns LockNotGrantedError.
//
// Transient store-unavailable errors propagate to the caller. When the
// client is configured with HoldLockOnServiceUnavailable, the local
// confirmation time still advances first, so the outage does not age the
// lease toward expiry.
func (c *clientImpl) SendHeartbeat(opts SendHeartbeatOptions) error {
	item := opts.LockItem
	if item == nil {
		return store.NewError(store.RetCInvalidOperation, "heartbeat: lock item must not be nil")
	}
	if opts.DeleteData && opts.Data != nil {
		return store.NewError(store.RetCInvalidOperation,
			"heartbeat: cannot both delete the payload and supply a new one")
	}

	item.mu.Lock()
	defer item.mu.Unlock()

	storageKey := item.UniqueIdentifier()
	switch {
	case item.isReleased:
		return newLockNotGranted("%q has been released", storageKey)
	case item.remainingLeaseLocked() <= 0:
		return newLockNotGranted("lease on %q elapsed %v ago without renewal", storageKey, -item.remainingLeaseLocked())
	case item.owner != c.identity.OwnerName():
		return newLockNotGranted("%q is held by %q, not by this client", storageKey, item.owner)
	}

	now := time.Now()
	version := c.identity.NewVersion()
	upd := store.RecordUpdate{NewVersion: version}
	if opts.DeleteData {
		upd.DeleteData = true
	} else if opts.Data != nil {
		upd.NewData = opts.Data
	}

	err := c.store.UpdateRecord(storageKey, upd, store.IfVersionEquals(item.versionNumber))
	if err == nil {
		item.versionNumber = version
		item.lookupTime = now
		if opts.DeleteData {
			item.data = nil
		} else if opts.Data != nil {
			item.data = opts.Data
		}
		metricHeartbeats.Inc()
		return nil
	}

	metricHeartbeatFailures.Inc()
	if store.IsConditionFailed(err) {
		return newLockNotGranted("%q was reclaimed, version no longer matches", storageKey)
	}
	if store.IsUnavailable(err) && c.holdLockOnServiceUnavailable {
		// Treat the outage as not yet disqualifying: the lease keeps its
		// age from now, but the version number stays, and the caller still
		// sees the store error.
		item.lookupTime = now
	}
	return fmt.Errorf("heartbeat for %q: %w", storageKey, err)
}
