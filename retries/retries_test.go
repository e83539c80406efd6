package retries_test

import (
	"testing"
	"time"

	"github.com/gokit/rxkit/retries"
	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	b := retries.Constant(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, b(1))
	assert.Equal(t, 20*time.Millisecond, b(7))
	assert.Equal(t, time.Duration(0), retries.None(3))
}

func TestLinear(t *testing.T) {
	b := retries.Linear(time.Second)
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 3*time.Second, b(3))
}

func TestExponential(t *testing.T) {
	b := retries.Exponential(10*time.Millisecond, 100*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, b(1))
	assert.Equal(t, 20*time.Millisecond, b(2))
	assert.Equal(t, 40*time.Millisecond, b(3))
	assert.Equal(t, 80*time.Millisecond, b(4))
	assert.Equal(t, 100*time.Millisecond, b(5))
	assert.Equal(t, 100*time.Millisecond, b(60))
}

func TestLinearRanged(t *testing.T) {
	b := retries.LinearRanged(800*time.Millisecond, 1200*time.Millisecond)
	for attempt := 1; attempt < 5; attempt++ {
		d := b(attempt)
		assert.True(t, d >= 800*time.Millisecond*time.Duration(attempt), "attempt %d gave %s", attempt, d)
		assert.True(t, d <= 1200*time.Millisecond*time.Duration(attempt), "attempt %d gave %s", attempt, d)
	}

	assert.Equal(t, 2*time.Second, retries.LinearRanged(time.Second, time.Second)(2))
}

func TestJitter(t *testing.T) {
	b := retries.Jitter(retries.Constant(time.Second), 0.5)
	for i := 0; i < 20; i++ {
		d := b(1)
		assert.True(t, d >= 500*time.Millisecond, "got %s", d)
		assert.True(t, d <= 1500*time.Millisecond+1, "got %s", d)
	}

	same := retries.Jitter(retries.Constant(time.Second), 0)
	assert.Equal(t, time.Second, same(1))
}
