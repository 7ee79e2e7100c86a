package lock

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

func TestHeartbeatRenewsLock(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{LeaseDuration: time.Second})

	item, err := c.AcquireLock(AcquireLockOptions{Key: "renewable"})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}

	before := item.RecordVersionNumber()
	beforeLookup := item.LookupTime()
	time.Sleep(5 * time.Millisecond)

	if err := c.SendHeartbeat(SendHeartbeatOptions{LockItem: item}); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	if item.RecordVersionNumber() == before {
		t.Error("heartbeat did not rotate the version number")
	}
	if !item.LookupTime().After(beforeLookup) {
		t.Error("heartbeat did not advance the confirmation time")
	}

	// The store must agree with the cached state.
	rec, found, err := st.GetRecord("renewable")
	if err != nil || !found {
		t.Fatalf("record lookup failed: found=%t err=%v", found, err)
	}
	if rec.VersionNumber != item.RecordVersionNumber() {
		t.Errorf("store version %q != cached version %q", rec.VersionNumber, item.RecordVersionNumber())
	}
}

func TestHeartbeatPayloadHandling(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{})

	item, err := c.AcquireLock(AcquireLockOptions{Key: "payload", Data: []byte("initial")})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}

	if err := c.SendHeartbeat(SendHeartbeatOptions{LockItem: item, Data: []byte("updated")}); err != nil {
		t.Fatalf("heartbeat with payload failed: %v", err)
	}
	if string(item.Data()) != "updated" {
		t.Errorf("cached payload = %q, want %q", item.Data(), "updated")
	}

	if err := c.SendHeartbeat(SendHeartbeatOptions{LockItem: item, DeleteData: true}); err != nil {
		t.Fatalf("heartbeat deleting payload failed: %v", err)
	}
	if item.Data() != nil {
		t.Errorf("cached payload = %q after deletion", item.Data())
	}
	rec, _, _ := st.GetRecord("payload")
	if rec.Data != nil {
		t.Errorf("stored payload = %q after deletion", rec.Data)
	}
}

func TestHeartbeatInvalidArguments(t *testing.T) {
	st := newLocalStore()
	counting := &countingStore{inner: st}
	c := newTestClient(t, st, LockClientConfig{})
	c.store = counting

	item := &LockItem{
		client:        c,
		key:           "k",
		owner:         c.identity.OwnerName(),
		leaseDuration: time.Hour,
		lookupTime:    time.Now(),
		versionNumber: "v1",
	}

	err := c.SendHeartbeat(SendHeartbeatOptions{
		LockItem:   item,
		Data:       []byte("new"),
		DeleteData: true,
	})
	if !store.IsInvalidOperation(err) {
		t.Fatalf("expected invalid-argument error, got %v", err)
	}
	if counting.writes() != 0 {
		t.Error("invalid heartbeat options must not reach the store")
	}

	if err := c.SendHeartbeat(SendHeartbeatOptions{}); !store.IsInvalidOperation(err) {
		t.Fatalf("expected invalid-argument error for nil item, got %v", err)
	}
}

func TestHeartbeatPreconditions(t *testing.T) {
	st := newLocalStore()
	counting := &countingStore{inner: st}
	c := newTestClient(t, st, LockClientConfig{})
	c.store = counting

	newItem := func(mutate func(*LockItem)) *LockItem {
		item := &LockItem{
			client:        c,
			key:           "k",
			owner:         c.identity.OwnerName(),
			leaseDuration: time.Second,
			lookupTime:    time.Now(),
			versionNumber: "v1",
		}
		mutate(item)
		return item
	}

	cases := []struct {
		name string
		item *LockItem
	}{
		{"Released", newItem(func(i *LockItem) { i.isReleased = true })},
		{"LeaseElapsed", newItem(func(i *LockItem) { i.lookupTime = time.Now().Add(-2 * time.Second) })},
		{"ForeignOwnerLeaseElapsed", newItem(func(i *LockItem) {
			i.owner = "someone-else"
			i.lookupTime = time.Now().Add(-2 * time.Second)
		})},
		{"ForeignOwnerUnexpired", newItem(func(i *LockItem) { i.owner = "someone-else" })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.SendHeartbeat(SendHeartbeatOptions{LockItem: tc.item})
			if !IsLockNotGranted(err) {
				t.Fatalf("expected LockNotGrantedError, got %v", err)
			}
		})
	}
	if counting.writes() != 0 {
		t.Error("failed preconditions must not reach the store")
	}
}

func TestHeartbeatLostCondition(t *testing.T) {
	// A reclaim by another client rotates the stored version; the next
	// heartbeat must surface LockNotGranted, not a raw store error.
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{})

	item, err := c.AcquireLock(AcquireLockOptions{Key: "stolen"})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}
	if err := st.UpdateRecord("stolen", store.RecordUpdate{NewVersion: "thief-v1"}, store.Unconditional()); err != nil {
		t.Fatalf("interfering rewrite failed: %v", err)
	}

	err = c.SendHeartbeat(SendHeartbeatOptions{LockItem: item})
	if !IsLockNotGranted(err) {
		t.Fatalf("expected LockNotGrantedError, got %v", err)
	}
	if store.IsConditionFailed(err) {
		t.Error("condition failure leaked through the lock protocol")
	}
}

func TestHeartbeatStoreUnavailable(t *testing.T) {
	run := func(t *testing.T, hold bool) (*LockItem, error) {
		st := newLocalStore()
		c := newTestClient(t, st, LockClientConfig{
			LeaseDuration:                time.Second,
			HoldLockOnServiceUnavailable: hold,
		})

		item, err := c.AcquireLock(AcquireLockOptions{Key: "flaky"})
		if err != nil {
			t.Fatalf("acquisition failed: %v", err)
		}
		c.store = &unavailableStore{IRecordStore: st}
		time.Sleep(5 * time.Millisecond)
		return item, c.SendHeartbeat(SendHeartbeatOptions{LockItem: item})
	}

	t.Run("HoldDisabled", func(t *testing.T) {
		item, err := run(t, false)
		if !store.IsUnavailable(err) {
			t.Fatalf("expected the store outage to propagate, got %v", err)
		}
		// Confirmation time untouched: the lease keeps aging.
		if time.Since(item.LookupTime()) < 5*time.Millisecond {
			t.Error("confirmation time advanced despite hold being disabled")
		}
	})

	t.Run("HoldEnabled", func(t *testing.T) {
		item, err := run(t, true)
		if !store.IsUnavailable(err) {
			t.Fatalf("the store outage must still propagate, got %v", err)
		}
		if time.Since(item.LookupTime()) > 5*time.Millisecond {
			t.Error("confirmation time did not advance despite hold being enabled")
		}
		version := item.RecordVersionNumber()
		if version == "" {
			t.Fatal("item lost its version number")
		}
	})
}
