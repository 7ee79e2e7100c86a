package lock

import (
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Session Monitor
// --------------------------------------------------------------------------

// monitorJoinTimeout bounds how long stop waits for the monitor goroutine.
// A callback stuck mid-invocation must not block a release indefinitely.
const monitorJoinTimeout = time.Second

// sessionMonitor watches one lock item and fires a callback when the
// remaining lease time drops below the configured safe time. It never renews
// the lock itself. The callback fires once per arming; a renewal that pushes
// the margin back above the threshold re-arms it.
type sessionMonitor struct {
	item     *LockItem
	safeTime time.Duration
	callback func()

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// newSessionMonitor creates a monitor for the item and starts its goroutine.
func newSessionMonitor(item *LockItem, safeTime time.Duration, callback func()) *sessionMonitor {
	m := &sessionMonitor{
		item:     item,
		safeTime: safeTime,
		callback: callback,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *sessionMonitor) run() {
	defer close(m.doneCh)

	// Check a few times per safe-time window so the warning lands with
	// usable lead time left.
	interval := m.safeTime / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	armed := true
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.item.RemainingLease() < m.safeTime {
				if armed {
					armed = false
					m.invoke()
				}
			} else {
				armed = true
			}
		}
	}
}

// invoke shields the monitor loop from a panicking callback.
func (m *sessionMonitor) invoke() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("session monitor callback for %q panicked: %v", m.item.UniqueIdentifier(), r)
		}
	}()
	m.callback()
}

// stop cancels the monitor and joins its goroutine with a bounded wait.
// It is idempotent, never panics while the callback is mid-invocation, and
// swallows a join that does not finish in time.
func (m *sessionMonitor) stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	select {
	case <-m.doneCh:
	case <-time.After(monitorJoinTimeout):
		log.Warningf("session monitor for %q did not stop within %v", m.item.UniqueIdentifier(), monitorJoinTimeout)
	}
}
