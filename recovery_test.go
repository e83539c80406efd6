package rxkit_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gokit/rxkit"
	"github.com/gokit/rxkit/retries"
	"github.com/stretchr/testify/require"
)

func failAt(at int) func(int) (int, error) {
	return func(v int) (int, error) {
		if v == at {
			return 0, errOdd
		}
		return v, nil
	}
}

func TestOnErrorContinue_DropsFailingItems(t *testing.T) {
	var skipped []interface{}
	var causes []error

	stream := rxkit.Map(rxkit.Range(1, 10), failAt(5)).
		OnErrorContinue(func(err error, item interface{}) {
			causes = append(causes, rxkit.Cause(err))
			skipped = append(skipped, item)
		})

	items, err := collect(stream)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 6, 7, 8, 9, 10}, items)
	require.Equal(t, []interface{}{5}, skipped)
	require.Equal(t, []error{errOdd}, causes)
}

func TestOnErrorContinue_KeepsDemand(t *testing.T) {
	stream := rxkit.Map(rxkit.Range(1, 10), failAt(2)).
		OnErrorContinue(func(error, interface{}) {})

	rec := newRecorder[int](3)
	stream.Subscribe(rec)

	require.Equal(t, []int{1, 3, 4}, rec.values())
	require.False(t, rec.isTerminated())
}

func TestOnErrorContinue_SourceErrorsFail(t *testing.T) {
	var called bool
	_, err := collect(rxkit.Failed[int](errOdd).OnErrorContinue(func(error, interface{}) {
		called = true
	}))

	require.Error(t, err)
	require.Equal(t, errOdd, rxkit.Cause(err))
	require.False(t, called)
}

func TestOnErrorContinue_FatalErrorsFail(t *testing.T) {
	var called bool
	stream := rxkit.Map(rxkit.Range(1, 3), func(v int) (int, error) {
		if v == 2 {
			return 0, &rxkit.StreamError{Kind: rxkit.ProtocolError, Fatal: true, Err: errOdd}
		}
		return v, nil
	}).OnErrorContinue(func(error, interface{}) {
		called = true
	})

	_, err := collect(stream)
	require.True(t, rxkit.IsFatal(err))
	require.False(t, called)
}

func TestOnErrorContinue_OnlyCoversUpstream(t *testing.T) {
	var called bool
	source := rxkit.Range(1, 5).OnErrorContinue(func(error, interface{}) {
		called = true
	})

	_, err := collect(rxkit.Map(source, failAt(3)))
	require.Error(t, err)

	item, ok := rxkit.ItemOf(err)
	require.True(t, ok)
	require.Equal(t, 3, item)
	require.False(t, called)
}

func TestOnErrorResume(t *testing.T) {
	stream := rxkit.Map(rxkit.Range(1, 5), failAt(5)).
		OnErrorResume(func(err error) rxkit.Stream[int] {
			return rxkit.Of(-1, -2, 1)
		})

	items, err := collect(stream)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, -1, -2, 1}, items)
}

func TestOnErrorResume_CarriesDemand(t *testing.T) {
	stream := rxkit.Map(rxkit.Range(1, 5), failAt(5)).
		OnErrorResume(func(err error) rxkit.Stream[int] {
			return rxkit.Of(-1, -2, 1)
		})

	rec := newRecorder[int](5)
	stream.Subscribe(rec)

	require.Equal(t, []int{1, 2, 3, 4, -1}, rec.values())
	require.False(t, rec.isTerminated())

	rec.request(2)
	require.Equal(t, []int{1, 2, 3, 4, -1, -2, 1}, rec.values())
	completed, _, _ := rec.result()
	require.Equal(t, 1, completed)
}

func TestOnErrorResume_ResumesOnce(t *testing.T) {
	var resumed int
	_, err := collect(rxkit.Failed[int](errOdd).OnErrorResume(func(err error) rxkit.Stream[int] {
		resumed++
		return rxkit.Failed[int](rxkit.ErrInvalidArgument)
	}))

	require.Equal(t, 1, resumed)
	require.True(t, rxkit.Is(err, rxkit.ErrInvalidArgument))
}

func TestOnErrorResume_SkipsProtocolErrors(t *testing.T) {
	var resumed bool
	stream := rxkit.From[int](&floodPublisher{count: 3}).OnErrorResume(func(err error) rxkit.Stream[int] {
		resumed = true
		return rxkit.Empty[int]()
	})

	rec := newRecorder[int](1)
	stream.Subscribe(rec)

	_, failed, err := rec.result()
	require.Equal(t, 1, failed)
	require.True(t, rxkit.IsProtocol(err))
	require.False(t, resumed)
}

func TestDoOnError(t *testing.T) {
	var seen error
	_, err := collect(rxkit.Failed[int](errOdd).DoOnError(func(err error) {
		seen = err
	}))

	require.Error(t, err)
	require.Equal(t, err, seen)

	seen = nil
	_, err = collect(rxkit.Of(1).DoOnError(func(err error) { seen = err }))
	require.NoError(t, err)
	require.Nil(t, seen)
}

func TestDoFinally(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		var finals reasons
		_, err := collect(rxkit.Of(1, 2).DoFinally(finals.record))
		require.NoError(t, err)
		require.Equal(t, []rxkit.Reason{rxkit.Completed}, finals.all())
	})

	t.Run("errored", func(t *testing.T) {
		var finals reasons
		_, err := collect(rxkit.Failed[int](errOdd).DoFinally(finals.record))
		require.Error(t, err)
		require.Equal(t, []rxkit.Reason{rxkit.Errored}, finals.all())
	})

	t.Run("cancelled", func(t *testing.T) {
		var finals reasons
		rec := newRecorder[int](1)
		rxkit.Range(1, 5).DoFinally(finals.record).Subscribe(rec)

		rec.cancel()
		rec.cancel()
		require.Equal(t, []rxkit.Reason{rxkit.Cancelled}, finals.all())
	})

	t.Run("after downstream terminal", func(t *testing.T) {
		var order []string
		stream := rxkit.Of(1).DoFinally(func(rxkit.Reason) {
			order = append(order, "finally")
		})

		stream.SubscribeFunc(nil, nil, func() {
			order = append(order, "complete")
		})
		require.Equal(t, []string{"complete", "finally"}, order)
	})
}

func TestRetry(t *testing.T) {
	var attempts int32
	source := rxkit.Defer(func() rxkit.Stream[int] {
		attempt := atomic.AddInt32(&attempts, 1)
		return rxkit.Map(rxkit.Range(1, 3), func(v int) (int, error) {
			if v == 3 && attempt < 2 {
				return 0, errOdd
			}
			return v, nil
		})
	})

	items, err := collect(source.Retry(2, nil))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 1, 2, 3}, items)
	require.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRetry_Exhausted(t *testing.T) {
	var attempts int32
	source := rxkit.Defer(func() rxkit.Stream[int] {
		atomic.AddInt32(&attempts, 1)
		return rxkit.Failed[int](errOdd)
	})

	_, err := collect(source.Retry(2, nil))
	require.Error(t, err)
	require.True(t, rxkit.Is(err, rxkit.ErrRetriesExhausted))
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	_, err = collect(source.Retry(0, nil))
	require.Equal(t, errOdd, rxkit.Cause(err))

	_, err = collect(source.Retry(-1, nil))
	require.True(t, rxkit.Is(err, rxkit.ErrInvalidArgument))
}

func TestRetry_WaitsForBackoff(t *testing.T) {
	var attempts int32
	source := rxkit.Defer(func() rxkit.Stream[int] {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return rxkit.Failed[int](errOdd)
		}
		return rxkit.Of(42)
	})

	start := time.Now()
	value, err := source.Retry(3, retries.Constant(20*time.Millisecond)).Next().BlockTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, 42, value)
	require.True(t, time.Since(start) >= 40*time.Millisecond)
}

func TestRetry_CancelStopsPendingAttempt(t *testing.T) {
	var attempts int32
	source := rxkit.Defer(func() rxkit.Stream[int] {
		atomic.AddInt32(&attempts, 1)
		return rxkit.Failed[int](errOdd)
	})

	rec := newRecorder[int](1)
	source.Retry(5, retries.Constant(30*time.Millisecond)).Subscribe(rec)
	rec.cancel()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	require.False(t, rec.isTerminated())
}
