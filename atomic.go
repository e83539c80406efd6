package rxkit

import (
	"sync/atomic"
)

// AtomicBool implements a safe atomic boolean.
type AtomicBool struct {
	flag int32
}

// IsTrue returns true/false if giving atomic bool is in true state.
func (a *AtomicBool) IsTrue() bool {
	return atomic.LoadInt32(&a.flag) == 1
}

// On sets the atomic bool as true.
func (a *AtomicBool) On() {
	atomic.StoreInt32(&a.flag, 1)
}

// TurnOn sets the atomic bool as true, returning true only for
// the caller which moved it from false.
func (a *AtomicBool) TurnOn() bool {
	return atomic.CompareAndSwapInt32(&a.flag, 0, 1)
}

// AtomicCounter implements a wrapper around a int64.
type AtomicCounter struct {
	count int64
}

// Inc increments the counter by one, returning the new count.
func (a *AtomicCounter) Inc() int64 {
	return atomic.AddInt64(&a.count, 1)
}

//***********************************
//  Demand
//***********************************

// addCap returns a+b saturated at Unbounded.
func addCap(a, b int64) int64 {
	if a > Unbounded-b {
		return Unbounded
	}
	return a + b
}

// mulCap returns a*b saturated at Unbounded.
func mulCap(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > Unbounded/b {
		return Unbounded
	}
	return a * b
}

// addDemand adds n to the demand held at addr and returns the
// previous value.
func addDemand(addr *int64, n int64) int64 {
	for {
		current := atomic.LoadInt64(addr)
		if current == Unbounded {
			return Unbounded
		}
		if atomic.CompareAndSwapInt64(addr, current, addCap(current, n)) {
			return current
		}
	}
}

// produced removes n emitted items from the demand held at addr and
// returns the remaining demand. Unbounded demand is left as is.
func produced(addr *int64, n int64) int64 {
	for {
		current := atomic.LoadInt64(addr)
		if current == Unbounded {
			return Unbounded
		}
		next := current - n
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt64(addr, current, next) {
			return next
		}
	}
}

// consumeOne takes a single unit of demand from addr, returning false
// if there was none.
func consumeOne(addr *int64) bool {
	for {
		current := atomic.LoadInt64(addr)
		if current == Unbounded {
			return true
		}
		if current == 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(addr, current, current-1) {
			return true
		}
	}
}
