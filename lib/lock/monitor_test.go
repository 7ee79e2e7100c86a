package lock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionMonitorFiresBelowThreshold(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{LeaseDuration: 200 * time.Millisecond})

	var fired atomic.Int32
	item, err := c.AcquireLock(AcquireLockOptions{
		Key: "watched",
		SessionMonitor: &SessionMonitorOptions{
			SafeTime: 100 * time.Millisecond,
			Callback: func() { fired.Add(1) },
		},
	})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}

	// No renewal happens, so the remaining lease falls below the safe time
	// after ~100ms.
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("callback fired %d times, want exactly 1 per arming", got)
	}

	// Longer waits without renewal must not re-fire: the monitor stays
	// disarmed until a renewal pushes the margin back up.
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("disarmed monitor fired again (%d times)", got)
	}
	_ = item
}

func TestSessionMonitorRearmsAfterRenewal(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{LeaseDuration: 200 * time.Millisecond})

	var fired atomic.Int32
	item, err := c.AcquireLock(AcquireLockOptions{
		Key: "watched",
		SessionMonitor: &SessionMonitorOptions{
			SafeTime: 100 * time.Millisecond,
			Callback: func() { fired.Add(1) },
		},
	})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}

	time.Sleep(130 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("callback fired %d times before renewal, want 1", got)
	}

	// Renewal restores the margin and re-arms the monitor; letting the lease
	// decay again must fire a second time.
	if err := c.SendHeartbeat(SendHeartbeatOptions{LockItem: item}); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 2 {
		t.Fatalf("callback fired %d times after renewal, want 2", got)
	}
}

func TestSessionMonitorStops(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{LeaseDuration: time.Second})

	var fired atomic.Int32
	item, err := c.AcquireLock(AcquireLockOptions{
		Key: "watched",
		SessionMonitor: &SessionMonitorOptions{
			SafeTime: 500 * time.Millisecond,
			Callback: func() { fired.Add(1) },
		},
	})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}

	item.mu.Lock()
	monitor := item.monitor
	item.mu.Unlock()
	if monitor == nil {
		t.Fatal("acquisition did not start the session monitor")
	}

	if ok, err := c.ReleaseLock(ReleaseLockOptions{LockItem: item}); err != nil || !ok {
		t.Fatalf("release failed: ok=%t err=%v", ok, err)
	}

	select {
	case <-monitor.doneCh:
	case <-time.After(time.Second):
		t.Fatal("monitor goroutine still running after release")
	}

	// Stopping again must be a no-op.
	monitor.stop()

	// The lease would have decayed below the safe time by now; a stopped
	// monitor must not fire.
	time.Sleep(600 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("stopped monitor fired %d times", got)
	}
}

func TestSessionMonitorStopsWhenLockIsReacquired(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{LeaseDuration: 80 * time.Millisecond})

	first, err := c.AcquireLock(AcquireLockOptions{
		Key: "watched",
		SessionMonitor: &SessionMonitorOptions{
			SafeTime: 40 * time.Millisecond,
			Callback: func() {},
		},
	})
	if err != nil {
		t.Fatalf("first acquisition failed: %v", err)
	}
	first.mu.Lock()
	firstMonitor := first.monitor
	first.mu.Unlock()
	if firstMonitor == nil {
		t.Fatal("first acquisition did not start the session monitor")
	}

	// Let the lease lapse without renewal, then take the same key again from
	// the same client. The new item replaces the old registry entry.
	time.Sleep(120 * time.Millisecond)
	second, err := c.AcquireLock(AcquireLockOptions{
		Key:           "watched",
		RefreshPeriod: 10 * time.Millisecond,
		MaxWaitTime:   2 * time.Second,
		SessionMonitor: &SessionMonitorOptions{
			SafeTime: 40 * time.Millisecond,
			Callback: func() {},
		},
	})
	if err != nil {
		t.Fatalf("re-acquisition failed: %v", err)
	}

	// The superseded item's monitor is unreachable through the registry, so
	// the re-acquisition itself must have stopped it.
	select {
	case <-firstMonitor.doneCh:
	case <-time.After(time.Second):
		t.Fatal("superseded item's session monitor is still running after re-acquisition")
	}

	if got, ok := c.GetLock("watched", ""); !ok || got != second {
		t.Fatal("registry does not track the re-acquired item")
	}
}

func TestSessionMonitorSurvivesPanickingCallback(t *testing.T) {
	st := newLocalStore()
	c := newTestClient(t, st, LockClientConfig{LeaseDuration: 100 * time.Millisecond})

	var calls atomic.Int32
	item, err := c.AcquireLock(AcquireLockOptions{
		Key: "watched",
		SessionMonitor: &SessionMonitorOptions{
			SafeTime: 50 * time.Millisecond,
			Callback: func() {
				calls.Add(1)
				panic("callback exploded")
			},
		},
	})
	if err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback ran %d times, want 1", got)
	}

	// The monitor goroutine survived the panic and release can still join it.
	if _, err := c.ReleaseLock(ReleaseLockOptions{LockItem: item}); err != nil {
		t.Fatalf("release after callback panic failed: %v", err)
	}
}
