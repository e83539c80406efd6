package rxkit

import (
	"sync"
)

//***********************************
//  scalarSubscription
//***********************************

// scalarSubscription delivers at most one value to actual, once the value is
// available and has been requested. Completion and errors need no demand.
type scalarSubscription[T any] struct {
	actual   Subscriber[T]
	onCancel func()

	ml        sync.Mutex
	requested bool
	ready     bool
	done      bool
	value     T
}

func newScalarSubscription[T any](actual Subscriber[T], onCancel func()) *scalarSubscription[T] {
	return &scalarSubscription[T]{actual: actual, onCancel: onCancel}
}

func (sc *scalarSubscription[T]) Request(n int64) {
	if n <= 0 {
		if sc.finish() {
			sc.cancelUpstream()
			sc.actual.OnError(protocolError(ErrInvalidDemand, "requested %d", n))
		}
		return
	}

	sc.ml.Lock()
	if sc.done || sc.requested {
		sc.ml.Unlock()
		return
	}
	sc.requested = true
	if !sc.ready {
		sc.ml.Unlock()
		return
	}
	sc.done = true
	value := sc.value
	sc.ml.Unlock()

	sc.actual.OnNext(value)
	sc.actual.OnComplete()
}

func (sc *scalarSubscription[T]) Cancel() {
	if sc.finish() {
		sc.cancelUpstream()
	}
}

// isDone returns true once a terminal signal was sent or the subscription
// was cancelled.
func (sc *scalarSubscription[T]) isDone() bool {
	sc.ml.Lock()
	defer sc.ml.Unlock()
	return sc.done
}

// complete makes value available, emitting it right away if it was
// already requested.
func (sc *scalarSubscription[T]) complete(value T) {
	sc.ml.Lock()
	if sc.done || sc.ready {
		sc.ml.Unlock()
		return
	}
	sc.value, sc.ready = value, true
	if !sc.requested {
		sc.ml.Unlock()
		return
	}
	sc.done = true
	sc.ml.Unlock()

	sc.actual.OnNext(value)
	sc.actual.OnComplete()
}

// completeEmpty completes without a value.
func (sc *scalarSubscription[T]) completeEmpty() {
	if sc.finish() {
		sc.actual.OnComplete()
	}
}

// fail delivers err unless already terminated.
func (sc *scalarSubscription[T]) fail(err error) {
	if sc.finish() {
		sc.actual.OnError(err)
	}
}

func (sc *scalarSubscription[T]) finish() bool {
	sc.ml.Lock()
	defer sc.ml.Unlock()
	if sc.done {
		return false
	}
	sc.done = true
	return true
}

func (sc *scalarSubscription[T]) cancelUpstream() {
	if sc.onCancel != nil {
		sc.onCancel()
	}
}

//***********************************
//  reduceSubscriber
//***********************************

// reduceSubscriber consumes a whole stream with unbounded demand, folding
// items with add and emitting result once the stream completes.
type reduceSubscriber[T any, R any] struct {
	actual   Subscriber[R]
	add      func(T)
	result   func() R
	upstream Subscription
	scalar   *scalarSubscription[R]
	done     AtomicBool
}

func (r *reduceSubscriber[T, R]) OnSubscribe(s Subscription) {
	r.upstream = s
	r.scalar = newScalarSubscription[R](r.actual, func() {
		r.done.On()
		s.Cancel()
	})

	r.actual.OnSubscribe(r.scalar)
	if !r.scalar.isDone() {
		s.Request(Unbounded)
	}
}

func (r *reduceSubscriber[T, R]) OnNext(v T) {
	if r.done.IsTrue() {
		return
	}
	r.add(v)
}

func (r *reduceSubscriber[T, R]) OnError(err error) {
	if r.done.TurnOn() {
		r.scalar.fail(err)
	}
}

func (r *reduceSubscriber[T, R]) OnComplete() {
	if r.done.TurnOn() {
		r.scalar.complete(r.result())
	}
}

//***********************************
//  nextSubscriber
//***********************************

// nextSubscriber takes the first item of a stream and cancels the rest.
type nextSubscriber[T any] struct {
	actual   Subscriber[T]
	upstream Subscription
	scalar   *scalarSubscription[T]
	done     AtomicBool
}

func (n *nextSubscriber[T]) OnSubscribe(s Subscription) {
	n.upstream = s
	n.scalar = newScalarSubscription[T](n.actual, func() {
		n.done.On()
		s.Cancel()
	})

	n.actual.OnSubscribe(n.scalar)
	if !n.scalar.isDone() {
		s.Request(1)
	}
}

func (n *nextSubscriber[T]) OnNext(v T) {
	if !n.done.TurnOn() {
		return
	}
	n.upstream.Cancel()
	n.scalar.complete(v)
}

func (n *nextSubscriber[T]) OnError(err error) {
	if n.done.TurnOn() {
		n.scalar.fail(err)
	}
}

func (n *nextSubscriber[T]) OnComplete() {
	if n.done.TurnOn() {
		n.scalar.completeEmpty()
	}
}

//***********************************
//  Count, CollectList & Next
//***********************************

// Count returns a future of the number of items emitted by the stream.
func (s Stream[T]) Count() Future[int64] {
	return newFuture[int64](CountStage, s.stages, func(rc *runContext, actual Subscriber[int64]) {
		var count int64
		s.subscribe(rc, &reduceSubscriber[T, int64]{
			actual: actual,
			add:    func(_ T) { count++ },
			result: func() int64 { return count },
		})
	})
}

// CollectList returns a future of all items emitted by the stream, in order.
// An empty stream yields an empty, non-nil slice.
func CollectList[T any](s Stream[T]) Future[[]T] {
	return newFuture[[]T](CollectStage, s.stages, func(rc *runContext, actual Subscriber[[]T]) {
		items := []T{}
		s.subscribe(rc, &reduceSubscriber[T, []T]{
			actual: actual,
			add:    func(v T) { items = append(items, v) },
			result: func() []T { return items },
		})
	})
}

// Next returns a future of the first item of the stream, the rest of the
// stream is cancelled. An empty stream gives an empty future.
func (s Stream[T]) Next() Future[T] {
	return newFuture[T](NextStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &nextSubscriber[T]{actual: actual})
	})
}
