package lock

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

// --------------------------------------------------------------------------
// Acquisition Engine
// --------------------------------------------------------------------------

// AcquireLock implements the poll/retry/contend loop.
//
// Each iteration reads the current record and classifies it: absent records
// are taken with a put-if-absent, released records with a write guarded by
// the released flag (and, if configured, the observed version number), and
// held records are watched for expiry. A held record counts as expired only
// after it has been observed twice, at least one lease window apart, with an
// unchanged version number; a single stale-looking read cannot distinguish
// "about to be renewed" from "abandoned".
//
// A write is never retried after a failed condition check without re-reading
// the latest record state first. Store errors other than condition failures
// abort the acquisition and propagate to the caller.
func (c *clientImpl) AcquireLock(opts AcquireLockOptions) (*LockItem, error) {
	if err := opts.validate(c.leaseDuration); err != nil {
		return nil, err
	}

	refresh := opts.RefreshPeriod
	if refresh <= 0 {
		refresh = DefaultRefreshPeriod
	}
	maxWait := opts.MaxWaitTime
	if maxWait <= 0 {
		// Enough to wait out one abandoned holder's lease plus slack.
		maxWait = c.leaseDuration + 2*refresh
	}

	storageKey := store.StorageKey(opts.Key, opts.SortKey)
	started := time.Now()

	// Expiry bookkeeping across polls: the version number last seen on a
	// held record and when it was first seen.
	var observedVersion string
	var observedAt time.Time

	for {
		rec, found, err := c.store.GetRecord(storageKey)
		if err != nil {
			return nil, fmt.Errorf("acquire %q: %w", storageKey, err)
		}

		switch {
		case !found:
			if opts.AcquireOnlyIfLockAlreadyExists {
				return nil, newLockNotGranted("no existing record for %q", storageKey)
			}
			item, err := c.tryAcquire(&opts, nil, store.IfAbsent())
			if err == nil {
				return item, nil
			}
			if !store.IsConditionFailed(err) {
				return nil, err
			}
			metricAcquireConflicts.Inc()
			if opts.ShouldSkipBlockingWait {
				return nil, newLockNotGranted("lost the write race for %q", storageKey)
			}

		case rec.IsReleased:
			cond := store.IfReleased(true)
			if opts.AcquireReleasedLocksConsistently {
				cond = store.IfVersionEqualsAndReleased(rec.VersionNumber, true)
			}
			item, err := c.tryAcquire(&opts, rec, cond)
			if err == nil {
				return item, nil
			}
			if !store.IsConditionFailed(err) {
				return nil, err
			}
			metricAcquireConflicts.Inc()
			if opts.ShouldSkipBlockingWait {
				return nil, newLockNotGranted("released record %q was rewritten before the write", storageKey)
			}

		default:
			if rec.VersionNumber != observedVersion {
				// First sighting of this version, start the expiry window.
				observedVersion = rec.VersionNumber
				observedAt = time.Now()
			} else if time.Since(observedAt) >= rec.LeaseDuration {
				// Unchanged version across a full lease window proves no
				// renewal occurred. Reclaim, keyed on the observed version.
				item, err := c.tryAcquire(&opts, rec, store.IfVersionEquals(rec.VersionNumber))
				if err == nil {
					return item, nil
				}
				if !store.IsConditionFailed(err) {
					return nil, err
				}
				metricAcquireConflicts.Inc()
				observedVersion = ""
				if opts.ShouldSkipBlockingWait {
					return nil, newLockNotGranted("expired record %q was rewritten before the write", storageKey)
				}
				break
			}
			if opts.ShouldSkipBlockingWait {
				return nil, newLockCurrentlyUnavailable("%q is held by %q and not expired", storageKey, rec.Owner)
			}
		}

		time.Sleep(refresh)
		if time.Since(started) >= maxWait {
			return nil, newLockNotGranted("exceeded max wait time %v for %q", maxWait, storageKey)
		}
	}
}

// tryAcquire issues the conditional write that takes the lock and, on
// success, builds and registers the item. existing is nil when no record was
// observed. Condition failures return as typed store errors for the caller
// to classify.
func (c *clientImpl) tryAcquire(opts *AcquireLockOptions, existing *store.LockRecord, cond store.WriteCondition) (*LockItem, error) {
	owner := c.identity.OwnerName()
	version := c.identity.NewVersion()
	storageKey := store.StorageKey(opts.Key, opts.SortKey)

	data := opts.Data
	if !opts.ReplaceData && data == nil && existing != nil {
		data = existing.Data
	}

	var err error
	if opts.UpdateExistingLockRecord && existing != nil {
		lease := c.leaseDuration
		released := false
		upd := store.RecordUpdate{
			NewVersion:       version,
			NewOwner:         &owner,
			NewLeaseDuration: &lease,
			SetReleased:      &released,
		}
		if data != nil {
			upd.NewData = data
		} else if opts.ReplaceData {
			upd.DeleteData = true
		}
		if opts.Attributes != nil {
			upd.NewAttributes = opts.Attributes
		}
		err = c.store.UpdateRecord(storageKey, upd, cond)
	} else {
		err = c.store.PutRecord(&store.LockRecord{
			Key:           opts.Key,
			SortKey:       opts.SortKey,
			Owner:         owner,
			LeaseDuration: c.leaseDuration,
			VersionNumber: version,
			Data:          data,
			Attributes:    opts.Attributes,
		}, cond)
	}
	if err != nil {
		return nil, err
	}

	item := &LockItem{
		client:              c,
		key:                 opts.Key,
		sortKey:             opts.SortKey,
		owner:               owner,
		deleteLockOnRelease: opts.DeleteLockOnRelease,
		leaseDuration:       c.leaseDuration,
		lookupTime:          time.Now(),
		versionNumber:       version,
		data:                data,
	}
	if opts.SessionMonitor != nil {
		item.monitor = newSessionMonitor(item, opts.SessionMonitor.SafeTime, opts.SessionMonitor.Callback)
	}
	if prev, loaded := c.locks.LoadAndStore(storageKey, item); loaded {
		// Re-acquiring a key this client already tracked supersedes the old
		// item. Once evicted from the registry, neither release nor shutdown
		// can reach its monitor, so it has to stop here.
		prev.mu.Lock()
		monitor := prev.monitor
		prev.monitor = nil
		prev.mu.Unlock()
		if monitor != nil {
			monitor.stop()
		}
	}
	metricAcquisitions.Inc()
	log.Infof("acquired lock %q (owner=%s)", storageKey, owner)
	return item, nil
}
