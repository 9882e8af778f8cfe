package orchestrator

import "github.com/ashgrove/replistore/common"

// CircuitBreaker halts dispatch of new chunks after Threshold consecutive
// chunk failures. It never auto-clears a trip: a tripped run stays tripped
// until the operator starts a new run. Any single success resets the
// consecutive-failure count back to zero.
type CircuitBreaker struct {
	threshold    int64
	consecutive  common.AtomicCounter
	tripped      common.AtomicBool
	reason       string
}

func NewCircuitBreaker(threshold int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = common.DefaultCircuitBreakerThreshold
	}
	return &CircuitBreaker{threshold: int64(threshold)}
}

// RecordSuccess resets the consecutive-failure counter. It has no effect on
// an already-tripped breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.consecutive.Reset()
}

// RecordFailure increments the consecutive-failure counter and trips the
// breaker the first time it reaches threshold. Returns true if this call
// caused the trip.
func (b *CircuitBreaker) RecordFailure(reason string) (justTripped bool) {
	n := b.consecutive.Add(1)
	if n >= b.threshold && b.tripped.CompareAndSet(false, true) {
		b.reason = reason
		return true
	}
	return false
}

func (b *CircuitBreaker) Tripped() bool {
	return b.tripped.Get()
}

func (b *CircuitBreaker) Reason() string {
	return b.reason
}

func (b *CircuitBreaker) ConsecutiveFailures() int64 {
	return b.consecutive.Load()
}
