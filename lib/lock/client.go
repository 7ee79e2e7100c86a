package lock

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("lock")

const (
	// DefaultLeaseDuration is used when the client config leaves the lease
	// duration unset.
	DefaultLeaseDuration = 30 * time.Second

	// DefaultRefreshPeriod is the contention poll cadence used when an
	// acquisition leaves RefreshPeriod unset.
	DefaultRefreshPeriod = time.Second

	// heartbeatErrorBufferSize bounds the error side channel of the
	// heartbeat scheduler. Overflowing errors are logged instead.
	heartbeatErrorBufferSize = 64
)

// --------------------------------------------------------------------------
// Client Interface and Configuration
// --------------------------------------------------------------------------

// ILockClient is the façade of the lock protocol. It ties the acquisition
// engine, the heartbeat scheduler and the session monitors together and owns
// the registry of currently held lock items.
type ILockClient interface {
	// AcquireLock runs the acquisition algorithm for the given options. It
	// may block for up to the configured max wait time while contending.
	AcquireLock(opts AcquireLockOptions) (*LockItem, error)

	// SendHeartbeat renews a held lock: it rotates the record version number
	// and refreshes the local confirmation time.
	SendHeartbeat(opts SendHeartbeatOptions) error

	// ReleaseLock releases a held lock. It returns false when the release
	// write lost its condition check (the lease had already been reclaimed)
	// or the item is not owned by this client; local state is torn down
	// regardless.
	ReleaseLock(opts ReleaseLockOptions) (bool, error)

	// GetLock returns the tracked lock item for the key, if this client
	// currently holds it.
	GetLock(key, sortKey string) (*LockItem, bool)

	// GetLockFromStore fetches the current lock record from the store and
	// wraps it in a read-only item. The returned item is not registered for
	// renewal; heartbeating it fails unless this client is the owner.
	GetLockFromStore(key, sortKey string) (*LockItem, bool, error)

	// HeartbeatErrors exposes renewal failures of the background scheduler.
	// The channel is never closed; reads race with Close at the caller's
	// discretion.
	HeartbeatErrors() <-chan error

	// Close releases all locks held by this client and stops its background
	// tasks. Close is idempotent.
	Close() error
}

// LockClientConfig configures a lock client instance.
type LockClientConfig struct {
	// Store is the backing record store (required). Any IRecordStore works:
	// lstore for single-process use, dstore for raft-replicated state, or an
	// rpc client for a remote shard.
	Store store.IRecordStore

	// Identity supplies the owner name and record version numbers.
	// Defaults to NewHostIdentity().
	Identity IIdentity

	// LeaseDuration is the lease window written into acquired records.
	// Defaults to DefaultLeaseDuration.
	LeaseDuration time.Duration

	// HeartbeatPeriod is the cadence of the background renewal task.
	// Defaults to LeaseDuration / 5.
	HeartbeatPeriod time.Duration

	// HoldLockOnServiceUnavailable keeps treating a lock as held across
	// transient store outages during renewal: the local confirmation time
	// advances even though the renewal write failed.
	HoldLockOnServiceUnavailable bool

	// CreateHeartbeatBackgroundThread starts the periodic renewal task with
	// the client. When unset the caller drives SendHeartbeat itself.
	CreateHeartbeatBackgroundThread bool
}

// String implements the fmt.Stringer interface.
func (c LockClientConfig) String() string {
	return fmt.Sprintf(
		"LockClientConfig{LeaseDuration: %v, HeartbeatPeriod: %v, HoldLockOnServiceUnavailable: %t, CreateHeartbeatBackgroundThread: %t}",
		c.LeaseDuration, c.HeartbeatPeriod, c.HoldLockOnServiceUnavailable, c.CreateHeartbeatBackgroundThread,
	)
}

// --------------------------------------------------------------------------
// Client Implementation
// --------------------------------------------------------------------------

type clientImpl struct {
	store                        store.IRecordStore
	identity                     IIdentity
	leaseDuration                time.Duration
	heartbeatPeriod              time.Duration
	holdLockOnServiceUnavailable bool

	// locks maps storage keys to held items, shared by callers and the
	// heartbeat scheduler.
	locks *xsync.MapOf[string, *LockItem]

	hbErrs    chan error
	stopCh    chan struct{}
	doneCh    chan struct{}
	scheduled bool
	closeOnce sync.Once
}

// NewLockClient creates a lock client for the given config and, if
// configured, starts its heartbeat scheduler.
func NewLockClient(config LockClientConfig) (ILockClient, error) {
	if config.Store == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "lock client requires a record store")
	}

	identity := config.Identity
	if identity == nil {
		identity = NewHostIdentity()
	}
	lease := config.LeaseDuration
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	period := config.HeartbeatPeriod
	if period <= 0 {
		period = lease / 5
	}
	if period >= lease {
		return nil, store.NewErrorf(store.RetCInvalidOperation,
			"heartbeat period %v must be shorter than the lease duration %v", period, lease)
	}

	c := &clientImpl{
		store:                        config.Store,
		identity:                     identity,
		leaseDuration:                lease,
		heartbeatPeriod:              period,
		holdLockOnServiceUnavailable: config.HoldLockOnServiceUnavailable,
		locks:                        xsync.NewMapOf[string, *LockItem](),
		hbErrs:                       make(chan error, heartbeatErrorBufferSize),
		stopCh:                       make(chan struct{}),
		doneCh:                       make(chan struct{}),
	}

	if config.CreateHeartbeatBackgroundThread {
		c.scheduled = true
		go c.runHeartbeatLoop()
	}

	log.Infof("lock client created (owner=%s, %s)", identity.OwnerName(), config)
	return c, nil
}

// --------------------------------------------------------------------------
// Heartbeat Scheduler
// --------------------------------------------------------------------------

// runHeartbeatLoop renews every tracked lock once per heartbeat period. One
// entry's failure never stops the sweep; failures surface through the error
// channel and, if that is full, through the log.
func (c *clientImpl) runHeartbeatLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.locks.Range(func(key string, item *LockItem) bool {
				if err := c.SendHeartbeat(SendHeartbeatOptions{LockItem: item}); err != nil {
					c.reportHeartbeatError(key, err)
				}
				return true
			})
		}
	}
}

func (c *clientImpl) reportHeartbeatError(key string, err error) {
	wrapped := fmt.Errorf("heartbeat for %q: %w", key, err)
	select {
	case c.hbErrs <- wrapped:
	default:
		log.Warningf("heartbeat error channel full, dropping: %v", wrapped)
	}
}

func (c *clientImpl) HeartbeatErrors() <-chan error {
	return c.hbErrs
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

func (c *clientImpl) GetLock(key, sortKey string) (*LockItem, bool) {
	return c.locks.Load(store.StorageKey(key, sortKey))
}

func (c *clientImpl) GetLockFromStore(key, sortKey string) (*LockItem, bool, error) {
	rec, found, err := c.store.GetRecord(store.StorageKey(key, sortKey))
	if err != nil {
		return nil, false, fmt.Errorf("get lock %q: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}
	item := &LockItem{
		client:        c,
		key:           rec.Key,
		sortKey:       rec.SortKey,
		owner:         rec.Owner,
		leaseDuration: rec.LeaseDuration,
		lookupTime:    time.Now(),
		versionNumber: rec.VersionNumber,
		isReleased:    rec.IsReleased,
		data:          rec.Data,
	}
	return item, true, nil
}

// --------------------------------------------------------------------------
// Release
// --------------------------------------------------------------------------

func (c *clientImpl) ReleaseLock(opts ReleaseLockOptions) (bool, error) {
	item := opts.LockItem
	if item == nil {
		return false, store.NewError(store.RetCInvalidOperation, "release: lock item must not be nil")
	}
	if opts.DeleteData && opts.Data != nil {
		return false, store.NewError(store.RetCInvalidOperation,
			"release: cannot both delete the payload and supply a new one")
	}
	if !item.OwnedByClient() {
		return false, nil
	}

	// Stop the monitor and deregister from the scheduler first so that no
	// renewal races the release write. The monitor join must happen outside
	// the item mutex: the monitor reads the item under that mutex.
	item.mu.Lock()
	monitor := item.monitor
	item.monitor = nil
	item.mu.Unlock()
	if monitor != nil {
		monitor.stop()
	}
	c.locks.Delete(item.UniqueIdentifier())

	item.mu.Lock()
	defer item.mu.Unlock()

	if item.isReleased {
		return true, nil
	}
	// Local teardown happens regardless of the store outcome.
	item.isReleased = true

	cond := store.IfVersionEquals(item.versionNumber)
	var err error
	if item.deleteLockOnRelease {
		err = c.store.DeleteRecord(item.UniqueIdentifier(), cond)
	} else {
		released := true
		upd := store.RecordUpdate{
			NewVersion:  c.identity.NewVersion(),
			SetReleased: &released,
		}
		if opts.DeleteData {
			upd.DeleteData = true
		} else if opts.Data != nil {
			upd.NewData = opts.Data
		}
		err = c.store.UpdateRecord(item.UniqueIdentifier(), upd, cond)
	}

	if err != nil {
		// A failed condition means someone already reclaimed the record,
		// implying our lease had lapsed. Not fatal, the caller learns via ok.
		if store.IsConditionFailed(err) {
			log.Warningf("release of %q lost its condition check, record already reclaimed", item.UniqueIdentifier())
			return false, nil
		}
		return false, fmt.Errorf("release %q: %w", item.UniqueIdentifier(), err)
	}

	metricReleases.Inc()
	return true, nil
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

func (c *clientImpl) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.scheduled {
			close(c.stopCh)
			<-c.doneCh
		}

		var items []*LockItem
		c.locks.Range(func(_ string, item *LockItem) bool {
			items = append(items, item)
			return true
		})
		for _, item := range items {
			if _, relErr := c.ReleaseLock(ReleaseLockOptions{LockItem: item}); relErr != nil && err == nil {
				err = relErr
			}
		}
	})
	return err
}
