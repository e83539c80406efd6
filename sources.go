package rxkit

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gokit/errors"
	"github.com/robfig/cron/v3"
)

//***********************************
//  Empty & Failed
//***********************************

func emptyRun[T any](_ *runContext, s Subscriber[T]) {
	s.OnSubscribe(noopSubscription{})
	s.OnComplete()
}

// Empty returns a stream which completes as soon as it is subscribed to.
func Empty[T any]() Stream[T] {
	return newStream[T](SourceStage, nil, emptyRun[T])
}

// Failed returns a stream which fails with err as soon as it is subscribed to.
func Failed[T any](err error) Stream[T] {
	return newStream[T](SourceStage, nil, func(_ *runContext, s Subscriber[T]) {
		s.OnSubscribe(noopSubscription{})
		s.OnError(upstreamError(err))
	})
}

//***********************************
//  Of, FromSlice & Range
//***********************************

// Of returns a stream emitting the provided items in order.
func Of[T any](items ...T) Stream[T] {
	return FromSlice(items)
}

// FromSlice returns a stream emitting a copy of items in order.
func FromSlice[T any](items []T) Stream[T] {
	if len(items) == 0 {
		return Empty[T]()
	}

	cp := make([]T, len(items))
	copy(cp, items)

	return newStream[T](SourceStage, nil, func(rc *runContext, s Subscriber[T]) {
		s.OnSubscribe(&indexSubscription[T]{
			actual: s,
			size:   len(cp),
			at:     func(i int) T { return cp[i] },
		})
	})
}

// Range returns a stream emitting count sequential integers starting at start.
func Range(start int, count int) Stream[int] {
	if count < 0 {
		return Failed[int](errors.Wrap(ErrInvalidArgument, "range count %d is negative", count))
	}
	if count == 0 {
		return Empty[int]()
	}

	return newStream[int](SourceStage, nil, func(rc *runContext, s Subscriber[int]) {
		s.OnSubscribe(&indexSubscription[int]{
			actual: s,
			size:   count,
			at:     func(i int) int { return start + i },
		})
	})
}

// indexSubscription emits size items produced by at on the requesting
// goroutine. Reentrant requests made from within OnNext only add demand, the
// drain loop already running picks them up.
type indexSubscription[T any] struct {
	actual    Subscriber[T]
	at        func(int) T
	size      int
	index     int
	requested int64
	done      AtomicBool
}

func (is *indexSubscription[T]) Request(n int64) {
	if n <= 0 {
		if is.done.TurnOn() {
			is.actual.OnError(protocolError(ErrInvalidDemand, "requested %d", n))
		}
		return
	}
	if addDemand(&is.requested, n) == 0 {
		is.drain()
	}
}

func (is *indexSubscription[T]) Cancel() {
	is.done.On()
}

func (is *indexSubscription[T]) drain() {
	var emitted int64
	requested := atomic.LoadInt64(&is.requested)

	for {
		for emitted != requested && is.index < is.size {
			if is.done.IsTrue() {
				return
			}

			value := is.at(is.index)
			is.index++

			is.actual.OnNext(value)
			emitted++
		}

		if is.index == is.size {
			if is.done.TurnOn() {
				is.actual.OnComplete()
			}
			return
		}

		requested = atomic.LoadInt64(&is.requested)
		if requested == emitted {
			requested = produced(&is.requested, emitted)
			if requested == 0 {
				return
			}
			emitted = 0
		}
	}
}

//***********************************
//  Defer
//***********************************

// Defer returns a stream which calls factory for every run and subscribes to
// the stream it returns. Use it when a source needs state private to a run.
func Defer[T any](factory func() Stream[T]) Stream[T] {
	return newStream[T](SourceStage, nil, func(rc *runContext, s Subscriber[T]) {
		factory().subscribe(rc, s)
	})
}

//***********************************
//  Using
//***********************************

// Using returns a stream which acquires a resource for every run, builds the
// run's stream from it and releases it once the run completed, failed or was
// cancelled. A failing acquire fails the run.
func Using[R any, T any](acquire func() (R, error), build func(R) Stream[T], release func(R)) Stream[T] {
	return Defer(func() Stream[T] {
		resource, err := acquire()
		if err != nil {
			return Failed[T](err)
		}

		var once sync.Once
		return build(resource).DoFinally(func(_ Reason) {
			once.Do(func() { release(resource) })
		})
	})
}

//***********************************
//  From
//***********************************

// From adapts an external Publisher into a Stream. The adapted publisher is
// held to the demand it was given: emitting without outstanding demand
// cancels it and fails the run with a ProtocolError.
func From[T any](p Publisher[T]) Stream[T] {
	if st, ok := p.(Stream[T]); ok {
		return st
	}
	return newStream[T](SourceStage, nil, func(rc *runContext, s Subscriber[T]) {
		p.Subscribe(&strictSubscriber[T]{actual: s})
	})
}

type strictSubscriber[T any] struct {
	actual    Subscriber[T]
	upstream  Subscription
	requested int64
	done      AtomicBool
}

func (ss *strictSubscriber[T]) OnSubscribe(s Subscription) {
	ss.upstream = s
	ss.actual.OnSubscribe(ss)
}

func (ss *strictSubscriber[T]) OnNext(v T) {
	if ss.done.IsTrue() {
		return
	}
	if !consumeOne(&ss.requested) {
		ss.fail(protocolError(ErrUnrequestedEmission, "emitted %v", v))
		return
	}
	ss.actual.OnNext(v)
}

func (ss *strictSubscriber[T]) OnError(err error) {
	if ss.done.TurnOn() {
		ss.actual.OnError(upstreamError(err))
	}
}

func (ss *strictSubscriber[T]) OnComplete() {
	if ss.done.TurnOn() {
		ss.actual.OnComplete()
	}
}

func (ss *strictSubscriber[T]) Request(n int64) {
	if n <= 0 {
		ss.fail(protocolError(ErrInvalidDemand, "requested %d", n))
		return
	}
	addDemand(&ss.requested, n)
	ss.upstream.Request(n)
}

func (ss *strictSubscriber[T]) Cancel() {
	ss.done.On()
	ss.upstream.Cancel()
}

func (ss *strictSubscriber[T]) fail(err error) {
	if !ss.done.TurnOn() {
		return
	}
	ss.upstream.Cancel()
	ss.actual.OnError(err)
}

//***********************************
//  Pull
//***********************************

// PullFunc produces the next item of a Pull stream. Returning io.EOF completes
// the stream, any other error fails it. ctx is cancelled when the run is.
type PullFunc[T any] func(ctx context.Context) (T, error)

// Pull returns a stream which calls fn for every requested item. fn may block,
// each run calls it from a single goroutine which only runs while there is
// outstanding demand.
//
// fn is shared by all runs, wrap Pull in Defer when it holds per-run state.
func Pull[T any](fn PullFunc[T]) Stream[T] {
	return newStream[T](SourceStage, nil, func(rc *runContext, s Subscriber[T]) {
		ctx, cancel := context.WithCancel(context.Background())
		s.OnSubscribe(&pullSubscription[T]{
			ctx:    ctx,
			cancel: cancel,
			fn:     fn,
			actual: s,
			wake:   make(chan struct{}, 1),
		})
	})
}

type pullSubscription[T any] struct {
	ctx       context.Context
	cancel    context.CancelFunc
	fn        PullFunc[T]
	actual    Subscriber[T]
	requested int64
	wake      chan struct{}
	start     sync.Once

	el  sync.Mutex
	bad error
}

func (ps *pullSubscription[T]) Request(n int64) {
	if n <= 0 {
		ps.el.Lock()
		if ps.bad == nil {
			ps.bad = protocolError(ErrInvalidDemand, "requested %d", n)
		}
		ps.el.Unlock()
	} else {
		addDemand(&ps.requested, n)
	}

	ps.start.Do(func() {
		go ps.loop()
	})

	select {
	case ps.wake <- struct{}{}:
	default:
	}
}

func (ps *pullSubscription[T]) Cancel() {
	ps.cancel()
}

func (ps *pullSubscription[T]) invalid() error {
	ps.el.Lock()
	defer ps.el.Unlock()
	return ps.bad
}

func (ps *pullSubscription[T]) loop() {
	defer ps.cancel()

	for {
		if ps.ctx.Err() != nil {
			return
		}

		if err := ps.invalid(); err != nil {
			ps.actual.OnError(err)
			return
		}

		if atomic.LoadInt64(&ps.requested) == 0 {
			select {
			case <-ps.wake:
				continue
			case <-ps.ctx.Done():
				return
			}
		}

		value, err := ps.fn(ps.ctx)
		if ps.ctx.Err() != nil {
			return
		}

		if err == io.EOF {
			ps.actual.OnComplete()
			return
		}

		if err != nil {
			ps.actual.OnError(upstreamError(err))
			return
		}

		produced(&ps.requested, 1)
		ps.actual.OnNext(value)
	}
}

//***********************************
//  FromChannel
//***********************************

// FromChannel returns a stream draining ch, completing when it is closed.
// Items are only received while there is outstanding demand. All runs share
// the same channel.
func FromChannel[T any](ch <-chan T) Stream[T] {
	return Pull(func(ctx context.Context) (T, error) {
		var zero T
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case v, ok := <-ch:
			if !ok {
				return zero, io.EOF
			}
			return v, nil
		}
	})
}

//***********************************
//  Interval & Schedule
//***********************************

// Interval returns a stream emitting 0, 1, 2, ... with period between each
// tick. Ticks are demand-gated, a tick is only timed once requested.
func Interval(period time.Duration) Stream[int64] {
	if period <= 0 {
		return Failed[int64](errors.Wrap(ErrInvalidArgument, "interval period %s is not positive", period))
	}

	return timed(func() tickFunc[int64] {
		var tick int64 = -1
		return func(now time.Time) (time.Time, int64, bool) {
			tick++
			return now.Add(period), tick, true
		}
	})
}

// Schedule returns a stream emitting the activation times of a cron schedule,
// such as one returned by cron.ParseStandard. It completes once the schedule
// has no activation left.
func Schedule(schedule cron.Schedule) Stream[time.Time] {
	return timed(func() tickFunc[time.Time] {
		return func(now time.Time) (time.Time, time.Time, bool) {
			next := schedule.Next(now)
			return next, next, !next.IsZero()
		}
	})
}

// tickFunc returns when the next tick is due and it's value, or false once
// there are no more ticks.
type tickFunc[T any] func(now time.Time) (time.Time, T, bool)

// timed returns a source emitting ticks on runtime timers, every run gets
// the ticks of a fresh tickFunc.
func timed[T any](ticks func() tickFunc[T]) Stream[T] {
	return newStream[T](SourceStage, nil, func(_ *runContext, s Subscriber[T]) {
		s.OnSubscribe(&timedSubscription[T]{actual: s, next: ticks()})
	})
}

type timedSubscription[T any] struct {
	actual Subscriber[T]
	next   tickFunc[T]

	ml        sync.Mutex
	requested int64
	timer     *time.Timer
	emitting  bool
	done      bool
}

func (ts *timedSubscription[T]) Request(n int64) {
	ts.ml.Lock()
	if ts.done {
		ts.ml.Unlock()
		return
	}

	if n <= 0 {
		ts.stop()
		ts.ml.Unlock()
		ts.actual.OnError(protocolError(ErrInvalidDemand, "requested %d", n))
		return
	}

	ts.requested = addCap(ts.requested, n)
	finished := ts.arm()
	ts.ml.Unlock()

	if finished {
		ts.actual.OnComplete()
	}
}

func (ts *timedSubscription[T]) Cancel() {
	ts.ml.Lock()
	if !ts.done {
		ts.stop()
	}
	ts.ml.Unlock()
}

// arm must be called with the lock held. It times the next tick if one is
// wanted and returns true if the ticks ran out, marking the run as done.
func (ts *timedSubscription[T]) arm() bool {
	if ts.done || ts.emitting || ts.timer != nil || ts.requested == 0 {
		return false
	}

	now := time.Now()
	at, v, ok := ts.next(now)
	if !ok {
		ts.done = true
		return true
	}

	ts.timer = time.AfterFunc(at.Sub(now), func() {
		ts.fire(v)
	})
	return false
}

func (ts *timedSubscription[T]) fire(v T) {
	ts.ml.Lock()
	if ts.done {
		ts.ml.Unlock()
		return
	}
	ts.timer = nil
	ts.emitting = true
	if ts.requested != Unbounded {
		ts.requested--
	}
	ts.ml.Unlock()

	ts.actual.OnNext(v)

	ts.ml.Lock()
	ts.emitting = false
	finished := ts.arm()
	ts.ml.Unlock()

	if finished {
		ts.actual.OnComplete()
	}
}

// stop must be called with the lock held.
func (ts *timedSubscription[T]) stop() {
	ts.done = true
	if ts.timer != nil {
		ts.timer.Stop()
		ts.timer = nil
	}
}
