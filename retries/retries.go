// Package retries provides backoff strategies used to space out
// resubscription attempts.
package retries

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff returns the duration to wait before the provided attempt. Attempts
// start at 1.
type Backoff func(attempt int) time.Duration

//***************************************************************
// BackOff Generators
//
// Adapted from the ff:
// 1. https://github.com/sethgrid/pester
// 2. https://github.com/cenkalti/backoff
// 3. https://github.com/hashicorp/go-retryablehttp
//***************************************************************

var (
	randomMu sync.Mutex
	random   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randomFloat() float64 {
	randomMu.Lock()
	defer randomMu.Unlock()
	return random.Float64()
}

// None retries immediately.
func None(_ int) time.Duration {
	return 0
}

// Constant waits the same duration before every attempt.
func Constant(d time.Duration) Backoff {
	return func(_ int) time.Duration {
		return d
	}
}

// Linear returns increasing durations, each step longer than the last.
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

// Exponential returns durations growing by a power of 2 from min and
// limited by max.
func Exponential(min, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return RangeExponentialBackOff(min, max, attempt-1)
	}
}

// LinearRanged returns linearly growing durations whose step is picked at
// random between min and max for each attempt.
func LinearRanged(min, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return LinearRangedJitterBackOff(min, max, attempt-1)
	}
}

// Jitter returns a Backoff which varies every duration of b by +/- factor,
// preventing synchronized retries. A factor outside (0, 1] leaves b as is.
func Jitter(b Backoff, factor float64) Backoff {
	if factor <= 0 || factor > 1 {
		return b
	}
	return func(attempt int) time.Duration {
		return RandomValueFromInterval(factor, randomFloat(), b(attempt))
	}
}

// RangeExponentialBackOff provides a back off value which will perform
// exponential back off based on the attempt number and limited
// by the provided minimum and maximum durations.
func RangeExponentialBackOff(min, max time.Duration, attemptNum int) time.Duration {
	mult := math.Pow(2, float64(attemptNum)) * float64(min)
	sleep := time.Duration(mult)
	if float64(sleep) != mult || sleep > max {
		sleep = max
	}
	return sleep
}

// LinearRangedJitterBackOff provides a back off value which will
// perform linear back off based on the attempt number and with jitter to
// prevent a thundering herd.
//
// min and max here are *not* absolute values. The number to be multiplied by
// the attempt number will be chosen at random from between them, thus they are
// bounding the jitter.
//
// For instance a min of 800ms and max of 1200ms gives a small amount of jitter
// centered around one second increasing each retry (892ms, 2102ms, 2945ms, ...).
func LinearRangedJitterBackOff(min, max time.Duration, attemptNum int) time.Duration {
	// attemptNum starts at zero but we want to start at 1 for multiplication
	attemptNum++

	if max <= min {
		return min * time.Duration(attemptNum)
	}

	jitter := randomFloat() * float64(max-min)
	jitterMin := int64(jitter) + int64(min)
	return time.Duration(jitterMin * int64(attemptNum))
}

// RandomValueFromInterval returns a value from the interval
// [current - factor * current, current + factor * current] picked by r,
// which must be within [0, 1).
func RandomValueFromInterval(factor, r float64, current time.Duration) time.Duration {
	var delta = factor * float64(current)
	var minInterval = float64(current) - delta
	var maxInterval = float64(current) + delta

	// The +1 gives the upper bound the same chance of being picked as the others.
	return time.Duration(minInterval + (r * (maxInterval - minInterval + 1)))
}
