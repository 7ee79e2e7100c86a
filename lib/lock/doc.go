// Package lock implements a distributed mutual-exclusion lock client on top
// of any record store that implements store.IRecordStore. It lets multiple
// independent processes coordinate exclusive access to a named resource
// without a dedicated lock server: lock state lives as a record in the
// shared store, and the store's atomic conditional write is the single
// serialization point.
//
// Core Functionality:
//   - Lock acquisition with contention resolution and expiry detection
//   - Lease renewal (heartbeating), manually or via a background scheduler
//   - Proactive expiry warning through per-lock session monitors
//   - Safe release that fences out stale writers
//
// Fencing Scheme:
//
//	Every lock record carries an opaque record version number that is
//	regenerated on every successful write. All writes are conditional on the
//	version number still matching what the writer last observed (or on the
//	record being absent, for a first acquisition). A client that lost its
//	lease therefore cannot overwrite a successor's record: its stale version
//	number fails the condition check.
//
// Expiry Detection:
//
//	A held record counts as expired only after it has been observed twice,
//	at least one lease window apart, with an unchanged version number. An
//	unchanged number across a full lease window proves no renewal occurred;
//	a single stale-looking read proves nothing and never triggers a reclaim.
//
// Concurrency Model:
//
//	Acquisition, heartbeat and release are synchronous caller-driven calls
//	(acquisition may block in its poll loop). In addition each client runs at
//	most one background heartbeat scheduler, and each held lock optionally
//	runs one session monitor goroutine. All mutations of a single LockItem
//	are serialized through a per-item mutex; different items renew
//	concurrently. The registry mapping storage keys to items is a concurrent
//	map shared by callers and the scheduler.
//
// Usage Example:
//
//	client, err := lock.NewLockClient(lock.LockClientConfig{
//	    Store:                           lstore.NewLocalStore(),
//	    LeaseDuration:                   30 * time.Second,
//	    CreateHeartbeatBackgroundThread: true,
//	})
//	if err != nil {
//	    // Handle error
//	}
//	defer client.Close()
//
//	item, err := client.AcquireLock(lock.AcquireLockOptions{Key: "resource:123"})
//	if err != nil {
//	    // lock.IsLockNotGranted(err) → contention, retry or give up
//	    // lock.IsLockCurrentlyUnavailable(err) → held and unexpired, back off
//	}
//
//	// Use the resource safely, the scheduler renews the lease.
//	// ...
//
//	if _, err := client.ReleaseLock(lock.ReleaseLockOptions{LockItem: item}); err != nil {
//	    // Handle error
//	}
//
// Distributed Considerations:
//
//	The client itself holds no authoritative state; the store's conditional
//	write decides every race. With the dstore backend the condition is
//	evaluated inside the raft state machine, giving linearizable lock
//	semantics across a cluster. With lstore the same protocol coordinates
//	goroutines within one process, which is what the tests use.
//
// Security Considerations:
//
//	Version numbers are random UUIDs, which protects against accidental
//	fencing mistakes but not against a malicious writer with direct store
//	access. The protocol trusts the store's conditional-write atomicity as
//	its sole correctness anchor.
package lock
