package common

import "sync/atomic"

// AtomicBool gives stopRequested/pauseRequested acquire/release visibility
// across the scheduler goroutine and any observer goroutine without a mutex.
type AtomicBool struct {
	v atomic.Bool
}

func (b *AtomicBool) Set(val bool) { b.v.Store(val) }
func (b *AtomicBool) Get() bool    { return b.v.Load() }

// CompareAndSet reports whether it performed the swap, so callers (e.g. the
// circuit breaker tripping exactly once) can tell first-trip from already-tripped.
func (b *AtomicBool) CompareAndSet(old, new bool) bool {
	return b.v.CompareAndSwap(old, new)
}

// AtomicCounter wraps a monotonic-in-practice int64 counter (completedCount,
// bytesComplete, consecutiveFailures, ...) with an add-and-return-new-value
// operation, as required for counters observers read concurrently.
type AtomicCounter struct {
	v atomic.Int64
}

func (c *AtomicCounter) Load() int64 { return c.v.Load() }
func (c *AtomicCounter) Store(val int64) { c.v.Store(val) }

// Add adds delta and returns the counter's new value.
func (c *AtomicCounter) Add(delta int64) int64 { return c.v.Add(delta) }

func (c *AtomicCounter) Reset() { c.v.Store(0) }
