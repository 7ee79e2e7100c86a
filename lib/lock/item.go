package lock

import (
	"sync"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

// --------------------------------------------------------------------------
// Lock Item
// --------------------------------------------------------------------------

// LockItem is the client-side handle to a held or observed lock. It is
// created only by a successful acquisition (or a read-only store lookup) and
// mutated in place by every successful heartbeat or release.
//
// The mutable fields (versionNumber, lookupTime, isReleased, data) are
// written by the heartbeat scheduler and read by the session monitor as well
// as by callers, so every access goes through the per-item mutex. Different
// items renew concurrently; operations on one item are serialized.
//
// After a release the item is permanently inert: further heartbeat attempts
// fail with LockNotGrantedError.
type LockItem struct {
	client *clientImpl

	// immutable after construction
	key                 string
	sortKey             string
	owner               string
	deleteLockOnRelease bool

	mu            sync.Mutex
	leaseDuration time.Duration
	lookupTime    time.Time
	versionNumber string
	isReleased    bool
	data          []byte
	monitor       *sessionMonitor
}

// Key returns the partition key of the resource this item locks.
func (i *LockItem) Key() string { return i.key }

// SortKey returns the optional sort key of the resource.
func (i *LockItem) SortKey() string { return i.sortKey }

// Owner returns the owner name recorded for this lock.
func (i *LockItem) Owner() string { return i.owner }

// UniqueIdentifier returns the flat storage key identifying this lock.
func (i *LockItem) UniqueIdentifier() string {
	return store.StorageKey(i.key, i.sortKey)
}

// Data returns the opaque payload last confirmed for this lock.
func (i *LockItem) Data() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.data
}

// LeaseDuration returns the lease window of this lock.
func (i *LockItem) LeaseDuration() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.leaseDuration
}

// RecordVersionNumber returns the version number of the last confirmed write.
func (i *LockItem) RecordVersionNumber() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.versionNumber
}

// LookupTime returns the local time of the last confirmed store interaction.
func (i *LockItem) LookupTime() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lookupTime
}

// IsReleased reports whether this item has been released (locally or, for
// items fetched from the store, whether the record carried the released flag).
func (i *LockItem) IsReleased() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.isReleased
}

// IsExpired reports whether the lease window has elapsed since the last
// confirmed store interaction. The answer is a local estimate; the store's
// conditional write remains the only authority on ownership.
func (i *LockItem) IsExpired() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.remainingLeaseLocked() <= 0
}

// RemainingLease returns the estimated time left before the lease window
// elapses. Negative values indicate the lease has already lapsed.
func (i *LockItem) RemainingLease() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.remainingLeaseLocked()
}

// remainingLeaseLocked computes lease − time since last confirmation.
// Caller holds i.mu.
func (i *LockItem) remainingLeaseLocked() time.Duration {
	return i.leaseDuration - time.Since(i.lookupTime)
}

// OwnedByClient reports whether this item belongs to the client that holds
// it, as opposed to an item observed via a read-only store lookup.
func (i *LockItem) OwnedByClient() bool {
	return i.client != nil && i.owner == i.client.identity.OwnerName()
}

// Close releases the lock through its client. Closing an already released
// item is a no-op.
func (i *LockItem) Close() error {
	if i.client == nil {
		return nil
	}
	_, err := i.client.ReleaseLock(ReleaseLockOptions{LockItem: i})
	return err
}
