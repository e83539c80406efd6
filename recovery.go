package rxkit

import (
	"sync"
	"time"

	"github.com/gokit/errors"
	"github.com/gokit/rxkit/retries"
)

//***********************************
//  DoOnError
//***********************************

// DoOnError returns a stream calling fn with any error before passing it on
// unchanged.
func (s Stream[T]) DoOnError(fn func(error)) Stream[T] {
	return newStream[T](DoOnErrorStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &tapSubscriber[T]{actual: actual, hooks: Hooks[T]{OnError: fn}})
	})
}

//***********************************
//  OnErrorContinue
//***********************************

// OnErrorContinue returns a stream in which item-level errors raised by
// stages upstream of it are absorbed: fn receives the error and the offending
// item, the item is dropped and another one is requested in it's place.
//
// Errors raised by sources and protocol violations still fail the run.
func (s Stream[T]) OnErrorContinue(fn func(err error, item interface{})) Stream[T] {
	return newStream[T](OnErrorContinueStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc.withContinue(fn), actual)
	})
}

//***********************************
//  arbiter
//***********************************

// arbiter is the subscription handed downstream by operators which switch
// between upstream subscriptions, outstanding demand is carried over to
// every new upstream.
type arbiter struct {
	ml        sync.Mutex
	upstream  Subscription
	requested int64
	cancelled bool
}

func (a *arbiter) set(s Subscription) {
	a.ml.Lock()
	if a.cancelled {
		a.ml.Unlock()
		s.Cancel()
		return
	}
	a.upstream = s
	requested := a.requested
	a.ml.Unlock()

	if requested > 0 {
		s.Request(requested)
	}
}

// clear drops the current upstream, requests arriving until the next set
// are only recorded.
func (a *arbiter) clear() {
	a.ml.Lock()
	a.upstream = nil
	a.ml.Unlock()
}

func (a *arbiter) produced() {
	a.ml.Lock()
	if a.requested != Unbounded && a.requested > 0 {
		a.requested--
	}
	a.ml.Unlock()
}

func (a *arbiter) Request(n int64) {
	a.ml.Lock()
	if a.cancelled {
		a.ml.Unlock()
		return
	}
	if n > 0 {
		a.requested = addCap(a.requested, n)
	}
	upstream := a.upstream
	a.ml.Unlock()

	if upstream != nil {
		upstream.Request(n)
	}
}

func (a *arbiter) Cancel() {
	a.ml.Lock()
	a.cancelled = true
	upstream := a.upstream
	a.ml.Unlock()

	if upstream != nil {
		upstream.Cancel()
	}
}

func (a *arbiter) isCancelled() bool {
	a.ml.Lock()
	defer a.ml.Unlock()
	return a.cancelled
}

//***********************************
//  OnErrorResume
//***********************************

// OnErrorResume returns a stream which, when the source fails, continues with
// the stream returned by fn. Outstanding demand carries over to the
// replacement. Protocol violations are never resumed.
func (s Stream[T]) OnErrorResume(fn func(error) Stream[T]) Stream[T] {
	return newStream[T](OnErrorResumeStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &resumeSubscriber[T]{rc: rc, actual: actual, fn: fn})
	})
}

type resumeSubscriber[T any] struct {
	rc         *runContext
	actual     Subscriber[T]
	fn         func(error) Stream[T]
	arbiter    arbiter
	subscribed bool
	resumed    bool
}

func (r *resumeSubscriber[T]) OnSubscribe(s Subscription) {
	r.arbiter.set(s)
	if !r.subscribed {
		r.subscribed = true
		r.actual.OnSubscribe(&r.arbiter)
	}
}

func (r *resumeSubscriber[T]) OnNext(v T) {
	r.arbiter.produced()
	r.actual.OnNext(v)
}

func (r *resumeSubscriber[T]) OnError(err error) {
	if r.resumed || IsFatal(err) {
		r.actual.OnError(err)
		return
	}

	r.resumed = true
	r.arbiter.clear()
	r.fn(err).subscribe(r.rc, r)
}

func (r *resumeSubscriber[T]) OnComplete() {
	r.actual.OnComplete()
}

//***********************************
//  Retry
//***********************************

// Retry returns a stream which resubscribes to the source when it fails, at
// most max times, waiting backoff(attempt) before each attempt. A nil backoff
// retries immediately. Outstanding demand carries over to each attempt.
//
// Once attempts are exhausted the run fails with ErrRetriesExhausted.
func (s Stream[T]) Retry(max int, backoff retries.Backoff) Stream[T] {
	if max < 0 {
		return Failed[T](errors.Wrap(ErrInvalidArgument, "retry count %d is negative", max))
	}
	if backoff == nil {
		backoff = retries.None
	}

	return newStream[T](RetryStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &retrySubscriber[T]{
			rc:      rc,
			source:  s,
			actual:  actual,
			max:     max,
			backoff: backoff,
		})
	})
}

type retrySubscriber[T any] struct {
	rc         *runContext
	source     Stream[T]
	actual     Subscriber[T]
	max        int
	backoff    retries.Backoff
	arbiter    arbiter
	subscribed AtomicBool
	attempts   int
}

func (r *retrySubscriber[T]) OnSubscribe(s Subscription) {
	r.arbiter.set(s)
	if r.subscribed.TurnOn() {
		r.actual.OnSubscribe(&r.arbiter)
	}
}

func (r *retrySubscriber[T]) OnNext(v T) {
	r.arbiter.produced()
	r.actual.OnNext(v)
}

func (r *retrySubscriber[T]) OnError(err error) {
	if IsFatal(err) || r.max == 0 {
		r.actual.OnError(err)
		return
	}

	if r.attempts >= r.max {
		r.actual.OnError(&StreamError{
			Kind: UpstreamError,
			Err:  errors.Wrap(ErrRetriesExhausted, "%d attempts failed, last error: %s", r.attempts, Cause(err)),
		})
		return
	}

	r.attempts++
	r.arbiter.clear()

	LogMsg("retrying source").
		String("subscription", r.rc.ID()).
		Int("attempt", r.attempts).
		Err("error", err).
		Write(WARN, r.rc.logs)

	wait := r.backoff(r.attempts)
	if wait <= 0 {
		r.resubscribe()
		return
	}
	time.AfterFunc(wait, r.resubscribe)
}

func (r *retrySubscriber[T]) OnComplete() {
	r.actual.OnComplete()
}

func (r *retrySubscriber[T]) resubscribe() {
	if r.arbiter.isCancelled() {
		return
	}
	r.source.subscribe(r.rc, r)
}

//***********************************
//  DoFinally
//***********************************

// DoFinally returns a stream calling fn exactly once per run, after the run
// completed, failed or was cancelled.
func (s Stream[T]) DoFinally(fn func(Reason)) Stream[T] {
	return newStream[T](DoFinallyStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &finallySubscriber[T]{actual: actual, fn: fn})
	})
}

type finallySubscriber[T any] struct {
	link
	actual Subscriber[T]
	fn     func(Reason)
	once   sync.Once
}

func (f *finallySubscriber[T]) OnSubscribe(s Subscription) {
	f.upstream = s
	f.actual.OnSubscribe(f)
}

func (f *finallySubscriber[T]) OnNext(v T) {
	if f.done.IsTrue() {
		return
	}
	f.actual.OnNext(v)
}

func (f *finallySubscriber[T]) OnError(err error) {
	if !f.done.TurnOn() {
		return
	}
	f.actual.OnError(err)
	f.finally(Errored)
}

func (f *finallySubscriber[T]) OnComplete() {
	if !f.done.TurnOn() {
		return
	}
	f.actual.OnComplete()
	f.finally(Completed)
}

func (f *finallySubscriber[T]) Cancel() {
	if !f.done.TurnOn() {
		return
	}
	f.upstream.Cancel()
	f.finally(Cancelled)
}

func (f *finallySubscriber[T]) finally(reason Reason) {
	f.once.Do(func() { f.fn(reason) })
}
