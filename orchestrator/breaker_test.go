package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	a := assert.New(t)
	b := NewCircuitBreaker(3)

	a.False(b.RecordFailure("disk full"))
	a.False(b.RecordFailure("disk full"))
	a.True(b.RecordFailure("disk full"))
	a.True(b.Tripped())
	a.Equal("disk full", b.Reason())
}

func TestCircuitBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	a := assert.New(t)
	b := NewCircuitBreaker(3)

	b.RecordFailure("x")
	b.RecordFailure("x")
	b.RecordSuccess()
	a.Equal(int64(0), b.ConsecutiveFailures())
	a.False(b.RecordFailure("x"))
	a.False(b.Tripped())
}

func TestCircuitBreaker_NeverAutoClearsOnceTripped(t *testing.T) {
	a := assert.New(t)
	b := NewCircuitBreaker(1)

	a.True(b.RecordFailure("fatal"))
	b.RecordSuccess()
	a.True(b.Tripped())
}
