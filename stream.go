package rxkit

import (
	"sync"
)

// subscribeFunc starts a run of a pipeline for the provided subscriber.
type subscribeFunc[T any] func(rc *runContext, s Subscriber[T])

//***********************************
//  Stream
//***********************************

// Stream is a multi-value publisher. It is an immutable description of a
// pipeline: operators return new streams and leave the receiver untouched,
// each Subscribe call starts a fresh run with it's own state.
//
// The zero value is an empty stream.
type Stream[T any] struct {
	stages []StageKind
	run    subscribeFunc[T]
}

func newStream[T any](kind StageKind, parent []StageKind, run subscribeFunc[T]) Stream[T] {
	return Stream[T]{stages: appendStage(parent, kind), run: run}
}

// Stages returns the ordered list of stages of the stream.
func (s Stream[T]) Stages() []StageKind {
	return copyStages(s.stages)
}

// Subscribe starts a new run delivering signals to sub. Once sub has received
// a terminal signal or cancelled, nothing else is delivered to it.
func (s Stream[T]) Subscribe(sub Subscriber[T]) {
	rc := newRunContext()
	s.subscribe(rc, newGuard(rc, s.stages, sub))
}

// SubscribeFunc starts a new run requesting unbounded demand and delivering
// signals to the provided functions, any of which may be nil. Errors with no
// handler are logged and dropped.
//
// The returned Disposable cancels the run.
func (s Stream[T]) SubscribeFunc(onNext func(T), onError func(error), onComplete func()) Disposable {
	rc := newRunContext()
	ls := newLambdaSubscriber(rc, onNext, onError, onComplete)
	s.subscribe(rc, newGuard(rc, s.stages, Subscriber[T](ls)))
	return ls
}

func (s Stream[T]) subscribe(rc *runContext, sub Subscriber[T]) {
	if s.run == nil {
		emptyRun[T](rc, sub)
		return
	}
	s.run(rc, sub)
}

//***********************************
//  noopSubscription
//***********************************

type noopSubscription struct{}

func (noopSubscription) Request(_ int64) {}
func (noopSubscription) Cancel()         {}

//***********************************
//  guard
//***********************************

// guard sits at the end of every public subscription. It enforces that
// nothing follows a terminal signal or a cancel and publishes lifecycle
// events for the run.
type guard[T any] struct {
	rc         *runContext
	stages     []StageKind
	actual     Subscriber[T]
	upstream   Subscription
	subscribed AtomicBool
	terminated AtomicBool
}

func newGuard[T any](rc *runContext, stages []StageKind, actual Subscriber[T]) *guard[T] {
	return &guard[T]{rc: rc, stages: stages, actual: actual}
}

func (g *guard[T]) OnSubscribe(s Subscription) {
	if !g.subscribed.TurnOn() {
		s.Cancel()
		return
	}
	g.upstream = s
	publish(SubscriptionStarted{ID: g.rc.ID(), Stages: copyStages(g.stages)})
	g.actual.OnSubscribe(g)
}

func (g *guard[T]) OnNext(v T) {
	if g.terminated.IsTrue() {
		return
	}
	g.actual.OnNext(v)
}

func (g *guard[T]) OnError(err error) {
	if !g.terminated.TurnOn() {
		dropError(g.rc, err)
		return
	}
	g.actual.OnError(err)
	publish(SubscriptionTerminated{ID: g.rc.ID(), Reason: Errored, Err: err})
}

func (g *guard[T]) OnComplete() {
	if !g.terminated.TurnOn() {
		return
	}
	g.actual.OnComplete()
	publish(SubscriptionTerminated{ID: g.rc.ID(), Reason: Completed})
}

func (g *guard[T]) Request(n int64) {
	if g.terminated.IsTrue() {
		return
	}
	g.upstream.Request(n)
}

func (g *guard[T]) Cancel() {
	if !g.terminated.TurnOn() {
		return
	}
	g.upstream.Cancel()
	publish(SubscriptionTerminated{ID: g.rc.ID(), Reason: Cancelled})
}

//***********************************
//  lambdaSubscriber
//***********************************

// lambdaSubscriber backs SubscribeFunc, it requests unbounded demand.
type lambdaSubscriber[T any] struct {
	rc         *runContext
	onNext     func(T)
	onError    func(error)
	onComplete func()

	sl       sync.Mutex
	sub      Subscription
	disposed AtomicBool
}

func newLambdaSubscriber[T any](rc *runContext, onNext func(T), onError func(error), onComplete func()) *lambdaSubscriber[T] {
	return &lambdaSubscriber[T]{rc: rc, onNext: onNext, onError: onError, onComplete: onComplete}
}

func (l *lambdaSubscriber[T]) OnSubscribe(s Subscription) {
	l.sl.Lock()
	if l.disposed.IsTrue() {
		l.sl.Unlock()
		s.Cancel()
		return
	}
	l.sub = s
	l.sl.Unlock()

	s.Request(Unbounded)
}

func (l *lambdaSubscriber[T]) OnNext(v T) {
	if l.onNext != nil {
		l.onNext(v)
	}
}

func (l *lambdaSubscriber[T]) OnError(err error) {
	l.disposed.On()
	if l.onError == nil {
		dropError(l.rc, err)
		return
	}
	l.onError(err)
}

func (l *lambdaSubscriber[T]) OnComplete() {
	l.disposed.On()
	if l.onComplete != nil {
		l.onComplete()
	}
}

// Dispose cancels the run.
func (l *lambdaSubscriber[T]) Dispose() {
	if !l.disposed.TurnOn() {
		return
	}

	l.sl.Lock()
	sub := l.sub
	l.sl.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// Disposed returns true once the run was disposed or terminated.
func (l *lambdaSubscriber[T]) Disposed() bool {
	return l.disposed.IsTrue()
}
