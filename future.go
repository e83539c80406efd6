package rxkit

import (
	"context"
	"sync"
	"time"

	"github.com/gokit/errors"
)

//***********************************
//  Future
//***********************************

// Future is a publisher of at most one value. Like Stream it is an immutable
// description, every Subscribe or Block call starts a new run.
//
// The zero value is an empty future.
type Future[T any] struct {
	stages []StageKind
	run    subscribeFunc[T]
}

func newFuture[T any](kind StageKind, parent []StageKind, run subscribeFunc[T]) Future[T] {
	return Future[T]{stages: appendStage(parent, kind), run: run}
}

// futureOf views a stream known to emit at most one item as a future.
func futureOf[T any](s Stream[T]) Future[T] {
	return Future[T]{stages: s.stages, run: s.run}
}

// FutureOf returns a future of value.
func FutureOf[T any](value T) Future[T] {
	return newFuture[T](SourceStage, nil, func(_ *runContext, s Subscriber[T]) {
		sc := newScalarSubscription[T](s, nil)
		sc.value, sc.ready = value, true
		s.OnSubscribe(sc)
	})
}

// FutureError returns a future failing with err.
func FutureError[T any](err error) Future[T] {
	return futureOf(Failed[T](err))
}

// FutureEmpty returns a future completing without a value.
func FutureEmpty[T any]() Future[T] {
	return futureOf(Empty[T]())
}

// FutureFrom returns a future of the first item of p, see From.
func FutureFrom[T any](p Publisher[T]) Future[T] {
	if f, ok := p.(Future[T]); ok {
		return f
	}
	return From(p).Next()
}

// Stages returns the ordered list of stages of the future.
func (f Future[T]) Stages() []StageKind {
	return copyStages(f.stages)
}

// Stream returns a view of the future as a stream of at most one item.
func (f Future[T]) Stream() Stream[T] {
	return Stream[T]{stages: f.stages, run: f.run}
}

// Subscribe starts a new run delivering signals to sub.
func (f Future[T]) Subscribe(sub Subscriber[T]) {
	f.Stream().Subscribe(sub)
}

// SubscribeFunc starts a new run delivering signals to the provided
// functions, any of which may be nil. It returns immediately.
func (f Future[T]) SubscribeFunc(onNext func(T), onError func(error), onComplete func()) Disposable {
	return f.Stream().SubscribeFunc(onNext, onError, onComplete)
}

//***********************************
//  Future operators
//***********************************

// MapFuture returns a future applying fn to the value of f.
func MapFuture[T any, R any](f Future[T], fn func(T) (R, error)) Future[R] {
	return futureOf(Map(f.Stream(), fn))
}

// Filter returns a future which completes empty if the value does not
// match pred.
func (f Future[T]) Filter(pred func(T) bool) Future[T] {
	return futureOf(f.Stream().Filter(pred))
}

// DelayElement returns a future delivering the value d after it became
// available.
func (f Future[T]) DelayElement(d time.Duration) Future[T] {
	return futureOf(f.Stream().DelayElements(d))
}

// DoOnError returns a future calling fn with any error before passing it on.
func (f Future[T]) DoOnError(fn func(error)) Future[T] {
	return futureOf(f.Stream().DoOnError(fn))
}

// DoFinally returns a future calling fn once the run ends, see Stream.DoFinally.
func (f Future[T]) DoFinally(fn func(Reason)) Future[T] {
	return futureOf(f.Stream().DoFinally(fn))
}

// OnErrorResume returns a future switching to the future returned by fn
// when f fails.
func (f Future[T]) OnErrorResume(fn func(error) Future[T]) Future[T] {
	return futureOf(f.Stream().OnErrorResume(func(err error) Stream[T] {
		return fn(err).Stream()
	}))
}

// Log returns a future logging every signal, see Stream.Log.
func (f Future[T]) Log() Future[T] {
	return futureOf(f.Stream().Log())
}

// LogWith returns a future logging every signal under category to logs.
func (f Future[T]) LogWith(category string, logs Logs) Future[T] {
	return futureOf(f.Stream().LogWith(category, logs))
}

//***********************************
//  Zip
//***********************************

// Tuple holds the values joined by Zip.
type Tuple[A any, B any] struct {
	First  A
	Second B
}

// Zip returns a future of both values of a and b.
func Zip[A any, B any](a Future[A], b Future[B]) Future[Tuple[A, B]] {
	return ZipWith(a, b, func(x A, y B) (Tuple[A, B], error) {
		return Tuple[A, B]{First: x, Second: y}, nil
	})
}

// ZipWith returns a future combining the values of a and b with fn once both
// are available. An error on either side cancels the other and fails the
// future, an empty side completes it empty. It's stages are those of a
// followed by those of b and the zip.
func ZipWith[A any, B any, R any](a Future[A], b Future[B], fn func(A, B) (R, error)) Future[R] {
	stages := make([]StageKind, 0, len(a.stages)+len(b.stages)+1)
	stages = append(stages, a.stages...)
	stages = append(stages, b.stages...)
	stages = append(stages, ZipStage)
	return Future[R]{stages: stages, run: func(rc *runContext, actual Subscriber[R]) {
		z := &zipCoordinator[A, B, R]{rc: rc, fn: fn}
		z.scalar = newScalarSubscription[R](actual, z.cancelAll)

		actual.OnSubscribe(z.scalar)
		if z.scalar.isDone() {
			return
		}

		a.Stream().subscribe(rc, &zipSide[A]{
			onSubscribe: func(s Subscription) { z.attach(0, s) },
			onNext:      z.setFirst,
			onError:     z.fail,
			onComplete:  func() { z.complete(0) },
		})
		b.Stream().subscribe(rc, &zipSide[B]{
			onSubscribe: func(s Subscription) { z.attach(1, s) },
			onNext:      z.setSecond,
			onError:     z.fail,
			onComplete:  func() { z.complete(1) },
		})
	}}
}

type zipCoordinator[A any, B any, R any] struct {
	rc     *runContext
	fn     func(A, B) (R, error)
	scalar *scalarSubscription[R]

	ml     sync.Mutex
	subs   [2]Subscription
	has    [2]bool
	first  A
	second B
	done   bool
}

func (z *zipCoordinator[A, B, R]) attach(side int, s Subscription) {
	z.ml.Lock()
	if z.done {
		z.ml.Unlock()
		s.Cancel()
		return
	}
	z.subs[side] = s
	z.ml.Unlock()

	s.Request(Unbounded)
}

func (z *zipCoordinator[A, B, R]) setFirst(v A) {
	z.ml.Lock()
	if z.done || z.has[0] {
		z.ml.Unlock()
		return
	}
	z.first, z.has[0] = v, true
	z.ml.Unlock()
	z.tryJoin()
}

func (z *zipCoordinator[A, B, R]) setSecond(v B) {
	z.ml.Lock()
	if z.done || z.has[1] {
		z.ml.Unlock()
		return
	}
	z.second, z.has[1] = v, true
	z.ml.Unlock()
	z.tryJoin()
}

func (z *zipCoordinator[A, B, R]) tryJoin() {
	z.ml.Lock()
	if z.done || !z.has[0] || !z.has[1] {
		z.ml.Unlock()
		return
	}
	z.done = true
	first, second := z.first, z.second
	z.ml.Unlock()

	res, err := z.fn(first, second)
	if err != nil {
		z.scalar.fail(itemError(err, Tuple[A, B]{First: first, Second: second}))
		return
	}
	z.scalar.complete(res)
}

func (z *zipCoordinator[A, B, R]) fail(err error) {
	z.ml.Lock()
	if z.done {
		z.ml.Unlock()
		return
	}
	z.done = true
	subs := z.subs
	z.ml.Unlock()

	for _, s := range subs {
		if s != nil {
			s.Cancel()
		}
	}
	z.scalar.fail(err)
}

func (z *zipCoordinator[A, B, R]) complete(side int) {
	z.ml.Lock()
	if z.done || z.has[side] {
		z.ml.Unlock()
		return
	}
	z.done = true
	other := z.subs[1-side]
	z.ml.Unlock()

	if other != nil {
		other.Cancel()
	}
	z.scalar.completeEmpty()
}

func (z *zipCoordinator[A, B, R]) cancelAll() {
	z.ml.Lock()
	z.done = true
	subs := z.subs
	z.ml.Unlock()

	for _, s := range subs {
		if s != nil {
			s.Cancel()
		}
	}
}

type zipSide[T any] struct {
	onSubscribe func(Subscription)
	onNext      func(T)
	onError     func(error)
	onComplete  func()
}

func (z *zipSide[T]) OnSubscribe(s Subscription) { z.onSubscribe(s) }
func (z *zipSide[T]) OnNext(v T)                 { z.onNext(v) }
func (z *zipSide[T]) OnError(err error)          { z.onError(err) }
func (z *zipSide[T]) OnComplete()                { z.onComplete() }

//***********************************
//  Blocking
//***********************************

// Block subscribes and waits for the value of the future. A future completing
// without a value fails with ErrNoValue.
func (f Future[T]) Block() (T, error) {
	return f.BlockContext(context.Background())
}

// BlockTimeout is like Block but gives up after d, cancelling the run and
// failing with a TimeoutError.
func (f Future[T]) BlockTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return f.BlockContext(ctx)
}

// BlockContext is like Block but gives up once ctx is done, cancelling the
// run. An expired deadline is reported as a TimeoutError, any other reason as
// the error of ctx.
func (f Future[T]) BlockContext(ctx context.Context) (T, error) {
	value, ok, err := f.blockOptional(ctx)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, ErrNoValue
	}
	return value, nil
}

// BlockOptional is like Block but reports an empty future with a false
// instead of failing.
func (f Future[T]) BlockOptional() (T, bool, error) {
	return f.blockOptional(context.Background())
}

func (f Future[T]) blockOptional(ctx context.Context) (T, bool, error) {
	bs := &blockingSubscriber[T]{done: make(chan struct{})}
	f.Subscribe(bs)

	select {
	case <-bs.done:
		return bs.result()
	case <-ctx.Done():
		bs.cancel()

		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, false, timeoutError(errors.Wrap(ErrTimeout, "no value received in time"))
		}
		return zero, false, ctx.Err()
	}
}

type blockingSubscriber[T any] struct {
	done chan struct{}
	once sync.Once

	ml    sync.Mutex
	sub   Subscription
	value T
	has   bool
	err   error
}

func (b *blockingSubscriber[T]) OnSubscribe(s Subscription) {
	b.ml.Lock()
	b.sub = s
	b.ml.Unlock()
	s.Request(Unbounded)
}

func (b *blockingSubscriber[T]) OnNext(v T) {
	b.ml.Lock()
	if !b.has {
		b.value, b.has = v, true
	}
	b.ml.Unlock()
}

func (b *blockingSubscriber[T]) OnError(err error) {
	b.ml.Lock()
	b.err = err
	b.ml.Unlock()
	b.finish()
}

func (b *blockingSubscriber[T]) OnComplete() {
	b.finish()
}

func (b *blockingSubscriber[T]) finish() {
	b.once.Do(func() { close(b.done) })
}

func (b *blockingSubscriber[T]) cancel() {
	b.ml.Lock()
	sub := b.sub
	b.ml.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	b.finish()
}

func (b *blockingSubscriber[T]) result() (T, bool, error) {
	b.ml.Lock()
	defer b.ml.Unlock()
	return b.value, b.has, b.err
}
