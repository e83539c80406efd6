package rxkit_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gokit/rxkit"
	"github.com/stretchr/testify/require"
)

func TestDelayElements(t *testing.T) {
	var ml sync.Mutex
	var arrivals []time.Time

	start := time.Now()
	items, err := rxkit.CollectList(rxkit.Range(1, 3).DelayElements(15 * time.Millisecond).DoOnNext(func(_ int) {
		ml.Lock()
		arrivals = append(arrivals, time.Now())
		ml.Unlock()
	})).BlockTimeout(time.Second)

	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, items)
	require.True(t, time.Since(start) >= 45*time.Millisecond)

	ml.Lock()
	defer ml.Unlock()
	require.Len(t, arrivals, 3)
	require.True(t, arrivals[2].Sub(arrivals[1]) >= 15*time.Millisecond)
}

func TestDelayElements_HonoursDemand(t *testing.T) {
	rec := newRecorder[int](1)
	rxkit.Range(1, 5).DelayElements(5 * time.Millisecond).Subscribe(rec)

	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, []int{1}, rec.values())
	require.False(t, rec.isTerminated())

	rec.request(rxkit.Unbounded)
	require.Eventually(t, rec.isTerminated, time.Second, time.Millisecond)
	require.Equal(t, []int{1, 2, 3, 4, 5}, rec.values())
}

func TestDelayElements_ErrorsAreNotDelayed(t *testing.T) {
	start := time.Now()
	_, err := rxkit.Failed[int](errOdd).DelayElements(time.Second).Count().BlockTimeout(500 * time.Millisecond)
	require.Equal(t, errOdd, rxkit.Cause(err))
	require.True(t, time.Since(start) < 500*time.Millisecond)

	_, err = rxkit.Of(1).DelayElements(-time.Second).Count().Block()
	require.True(t, rxkit.Is(err, rxkit.ErrInvalidArgument))
}

func TestDelayElements_Cancel(t *testing.T) {
	rec := newRecorder[int](rxkit.Unbounded)
	rxkit.Of(1, 2).DelayElements(20 * time.Millisecond).Subscribe(rec)

	rec.cancel()
	time.Sleep(50 * time.Millisecond)

	require.Empty(t, rec.values())
	require.False(t, rec.isTerminated())
}

// lateCompletePublisher emits one item per request and completes on another
// goroutine after lag once the last item went out.
type lateCompletePublisher struct {
	count int
	lag   time.Duration
}

func (p *lateCompletePublisher) Subscribe(s rxkit.Subscriber[int]) {
	s.OnSubscribe(&lateCompleteSubscription{publisher: p, actual: s})
}

type lateCompleteSubscription struct {
	publisher *lateCompletePublisher
	actual    rxkit.Subscriber[int]

	ml   sync.Mutex
	sent int
}

func (l *lateCompleteSubscription) Request(n int64) {
	for ; n > 0; n-- {
		l.ml.Lock()
		if l.sent == l.publisher.count {
			l.ml.Unlock()
			return
		}
		l.sent++
		v, last := l.sent, l.sent == l.publisher.count
		l.ml.Unlock()

		l.actual.OnNext(v)
		if last {
			go func() {
				time.Sleep(l.publisher.lag)
				l.actual.OnComplete()
			}()
			return
		}
	}
}

func (l *lateCompleteSubscription) Cancel() {}

// orderSubscriber records signals once they were fully handled, holding
// each item for hold first.
type orderSubscriber struct {
	hold time.Duration
	ml   sync.Mutex
	seen []string
	done chan struct{}
}

func (o *orderSubscriber) OnSubscribe(s rxkit.Subscription) {
	s.Request(rxkit.Unbounded)
}

func (o *orderSubscriber) OnNext(v int) {
	time.Sleep(o.hold)
	o.ml.Lock()
	o.seen = append(o.seen, strconv.Itoa(v))
	o.ml.Unlock()
}

func (o *orderSubscriber) OnError(err error) {
	o.ml.Lock()
	o.seen = append(o.seen, "error")
	o.ml.Unlock()
	close(o.done)
}

func (o *orderSubscriber) OnComplete() {
	o.ml.Lock()
	o.seen = append(o.seen, "complete")
	o.ml.Unlock()
	close(o.done)
}

func TestDelayElements_CompletionWaitsForLastItem(t *testing.T) {
	const delay = 20 * time.Millisecond

	publisher := &lateCompletePublisher{count: 3, lag: delay + delay/2}
	sub := &orderSubscriber{hold: 3 * delay, done: make(chan struct{})}

	rxkit.From[int](publisher).DelayElements(delay).Subscribe(sub)

	select {
	case <-sub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate")
	}

	sub.ml.Lock()
	defer sub.ml.Unlock()
	require.Equal(t, []string{"1", "2", "3", "complete"}, sub.seen)
}
