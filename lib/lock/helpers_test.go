package lock

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/lstore"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// seqIdentity is a deterministic identity provider for tests.
type seqIdentity struct {
	owner string
	n     atomic.Uint64
}

func (s *seqIdentity) OwnerName() string { return s.owner }
func (s *seqIdentity) NewVersion() string {
	return fmt.Sprintf("%s-v%d", s.owner, s.n.Add(1))
}

// countingStore counts every call so tests can assert that certain paths
// never reach the store.
type countingStore struct {
	inner   store.IRecordStore
	gets    atomic.Int64
	puts    atomic.Int64
	updates atomic.Int64
	deletes atomic.Int64
}

func (c *countingStore) GetRecord(key string) (*store.LockRecord, bool, error) {
	c.gets.Add(1)
	return c.inner.GetRecord(key)
}

func (c *countingStore) PutRecord(rec *store.LockRecord, cond store.WriteCondition) error {
	c.puts.Add(1)
	return c.inner.PutRecord(rec, cond)
}

func (c *countingStore) UpdateRecord(key string, upd store.RecordUpdate, cond store.WriteCondition) error {
	c.updates.Add(1)
	return c.inner.UpdateRecord(key, upd, cond)
}

func (c *countingStore) DeleteRecord(key string, cond store.WriteCondition) error {
	c.deletes.Add(1)
	return c.inner.DeleteRecord(key, cond)
}

func (c *countingStore) TableExists() (bool, error) {
	return c.inner.TableExists()
}

func (c *countingStore) writes() int64 {
	return c.puts.Load() + c.updates.Load() + c.deletes.Load()
}

// hookStore runs callbacks before selected operations, used to inject races
// between a read and the following conditional write.
type hookStore struct {
	store.IRecordStore
	beforePut    func()
	beforeUpdate func()
}

func (h *hookStore) PutRecord(rec *store.LockRecord, cond store.WriteCondition) error {
	if h.beforePut != nil {
		h.beforePut()
	}
	return h.IRecordStore.PutRecord(rec, cond)
}

func (h *hookStore) UpdateRecord(key string, upd store.RecordUpdate, cond store.WriteCondition) error {
	if h.beforeUpdate != nil {
		h.beforeUpdate()
	}
	return h.IRecordStore.UpdateRecord(key, upd, cond)
}

// unavailableStore fails every write with a transient outage error.
type unavailableStore struct {
	store.IRecordStore
}

func (u *unavailableStore) UpdateRecord(string, store.RecordUpdate, store.WriteCondition) error {
	return store.NewError(store.RetCUnavailable, "simulated outage")
}

func (u *unavailableStore) PutRecord(*store.LockRecord, store.WriteCondition) error {
	return store.NewError(store.RetCUnavailable, "simulated outage")
}

// newTestClient builds a client over the given store with a deterministic
// identity and no background scheduler.
func newTestClient(t *testing.T, st store.IRecordStore, config LockClientConfig) *clientImpl {
	t.Helper()
	config.Store = st
	if config.Identity == nil {
		config.Identity = &seqIdentity{owner: "test-owner"}
	}
	if config.LeaseDuration == 0 {
		config.LeaseDuration = time.Second
	}
	client, err := NewLockClient(config)
	if err != nil {
		t.Fatalf("NewLockClient failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client.(*clientImpl)
}

// seedRecord writes a record owned by a third party directly into the store.
func seedRecord(t *testing.T, st store.IRecordStore, rec *store.LockRecord) {
	t.Helper()
	if rec.VersionNumber == "" {
		rec.VersionNumber = "seed-v1"
	}
	if err := st.PutRecord(rec, store.Unconditional()); err != nil {
		t.Fatalf("seeding record failed: %v", err)
	}
}

func newLocalStore() store.IRecordStore {
	return lstore.NewLocalStore()
}
