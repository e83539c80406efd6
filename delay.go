package rxkit

import (
	"sync"
	"time"

	"github.com/gokit/errors"
)

// DelayElements returns a stream delivering each item d after it was
// received. Items are pulled from upstream one at a time once the previous
// one was delivered, so emission is paced and still bound by demand. Errors
// are delivered right away.
//
// Delays run on runtime timers, no goroutine waits for them.
func (s Stream[T]) DelayElements(d time.Duration) Stream[T] {
	if d < 0 {
		return Failed[T](errors.Wrap(ErrInvalidArgument, "delay %s is negative", d))
	}

	return newStream[T](DelayStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &delaySubscriber[T]{actual: actual, delay: d})
	})
}

type delaySubscriber[T any] struct {
	actual   Subscriber[T]
	delay    time.Duration
	upstream Subscription

	ml           sync.Mutex
	requested    int64
	awaiting     bool
	inFlight     bool
	upstreamDone bool
	done         bool
	timer        *time.Timer
}

func (ds *delaySubscriber[T]) OnSubscribe(s Subscription) {
	ds.upstream = s
	ds.actual.OnSubscribe(ds)
}

func (ds *delaySubscriber[T]) Request(n int64) {
	if n <= 0 {
		ds.upstream.Request(n)
		return
	}

	ds.ml.Lock()
	if ds.done {
		ds.ml.Unlock()
		return
	}
	ds.requested = addCap(ds.requested, n)
	pull := ds.shouldPull()
	ds.ml.Unlock()

	if pull {
		ds.upstream.Request(1)
	}
}

// shouldPull must be called with the lock held, it marks the pull it
// reports as started.
func (ds *delaySubscriber[T]) shouldPull() bool {
	if ds.done || ds.upstreamDone || ds.awaiting || ds.inFlight || ds.requested == 0 {
		return false
	}
	ds.awaiting = true
	return true
}

func (ds *delaySubscriber[T]) Cancel() {
	ds.ml.Lock()
	if ds.done {
		ds.ml.Unlock()
		return
	}
	ds.done = true
	if ds.timer != nil {
		ds.timer.Stop()
	}
	ds.ml.Unlock()

	ds.upstream.Cancel()
}

func (ds *delaySubscriber[T]) OnNext(v T) {
	ds.ml.Lock()
	if ds.done {
		ds.ml.Unlock()
		return
	}
	ds.awaiting = false
	ds.inFlight = true
	ds.timer = time.AfterFunc(ds.delay, func() {
		ds.emit(v)
	})
	ds.ml.Unlock()
}

func (ds *delaySubscriber[T]) emit(v T) {
	ds.ml.Lock()
	if ds.done {
		ds.ml.Unlock()
		return
	}
	ds.timer = nil
	if ds.requested != Unbounded {
		ds.requested--
	}
	ds.ml.Unlock()

	// inFlight stays set until OnNext returns so an upstream completion
	// arriving meanwhile is left for us to deliver.
	ds.actual.OnNext(v)

	ds.ml.Lock()
	ds.inFlight = false
	if ds.upstreamDone && !ds.done {
		ds.done = true
		ds.ml.Unlock()
		ds.actual.OnComplete()
		return
	}
	pull := ds.shouldPull()
	ds.ml.Unlock()

	if pull {
		ds.upstream.Request(1)
	}
}

func (ds *delaySubscriber[T]) OnError(err error) {
	ds.ml.Lock()
	if ds.done {
		ds.ml.Unlock()
		return
	}
	ds.done = true
	if ds.timer != nil {
		ds.timer.Stop()
	}
	ds.ml.Unlock()

	ds.actual.OnError(err)
}

func (ds *delaySubscriber[T]) OnComplete() {
	ds.ml.Lock()
	if ds.done {
		ds.ml.Unlock()
		return
	}
	ds.upstreamDone = true
	if ds.inFlight {
		ds.ml.Unlock()
		return
	}
	ds.done = true
	ds.ml.Unlock()

	ds.actual.OnComplete()
}
