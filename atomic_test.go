package rxkit_test

import (
	"sync/atomic"
	"testing"

	"github.com/gokit/rxkit"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAtomicCounter(t *testing.T) {
	var counter rxkit.AtomicCounter
	var sawLast int32

	var group errgroup.Group
	for w := 0; w < 10; w++ {
		group.Go(func() error {
			for i := 0; i < 100; i++ {
				if counter.Inc() == 1000 {
					atomic.AddInt32(&sawLast, 1)
				}
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	require.Equal(t, int32(1), atomic.LoadInt32(&sawLast))
	require.Equal(t, int64(1001), counter.Inc())
}

func TestAtomicBool_TurnOn(t *testing.T) {
	var flag rxkit.AtomicBool
	var winners int32

	var group errgroup.Group
	for w := 0; w < 10; w++ {
		group.Go(func() error {
			if flag.TurnOn() {
				atomic.AddInt32(&winners, 1)
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	require.True(t, flag.IsTrue())
	require.Equal(t, int32(1), atomic.LoadInt32(&winners))
}
