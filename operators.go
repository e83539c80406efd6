package rxkit

import (
	"sync"
	"sync/atomic"

	"github.com/gokit/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

//***********************************
//  link
//***********************************

// link is embedded by operator subscribers which forward demand and
// cancellation unchanged to their upstream.
type link struct {
	upstream Subscription
	done     AtomicBool
}

func (l *link) Request(n int64) {
	l.upstream.Request(n)
}

func (l *link) Cancel() {
	l.done.On()
	l.upstream.Cancel()
}

//***********************************
//  Map
//***********************************

// Map returns a stream applying fn to every item. An error returned by fn
// fails the run with an UpstreamError carrying the item, unless absorbed by a
// downstream OnErrorContinue.
func Map[T any, R any](s Stream[T], fn func(T) (R, error)) Stream[R] {
	return newStream[R](MapStage, s.stages, func(rc *runContext, actual Subscriber[R]) {
		s.subscribe(rc, &mapSubscriber[T, R]{rc: rc, actual: actual, fn: fn})
	})
}

type mapSubscriber[T any, R any] struct {
	link
	rc     *runContext
	actual Subscriber[R]
	fn     func(T) (R, error)
}

func (m *mapSubscriber[T, R]) OnSubscribe(s Subscription) {
	m.upstream = s
	m.actual.OnSubscribe(m)
}

func (m *mapSubscriber[T, R]) OnNext(v T) {
	if m.done.IsTrue() {
		return
	}

	res, err := m.fn(v)
	if err == nil {
		m.actual.OnNext(res)
		return
	}

	failure := itemError(err, v)
	if m.rc.tryContinue(failure, v) {
		m.upstream.Request(1)
		return
	}

	if !m.done.TurnOn() {
		return
	}
	m.upstream.Cancel()
	m.actual.OnError(failure)
}

func (m *mapSubscriber[T, R]) OnError(err error) {
	if m.done.TurnOn() {
		m.actual.OnError(err)
	}
}

func (m *mapSubscriber[T, R]) OnComplete() {
	if m.done.TurnOn() {
		m.actual.OnComplete()
	}
}

//***********************************
//  Filter
//***********************************

// Filter returns a stream emitting only the items matching pred.
func (s Stream[T]) Filter(pred func(T) bool) Stream[T] {
	return newStream[T](FilterStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &filterSubscriber[T]{actual: actual, pred: pred})
	})
}

type filterSubscriber[T any] struct {
	link
	actual Subscriber[T]
	pred   func(T) bool
}

func (f *filterSubscriber[T]) OnSubscribe(s Subscription) {
	f.upstream = s
	f.actual.OnSubscribe(f)
}

func (f *filterSubscriber[T]) OnNext(v T) {
	if f.done.IsTrue() {
		return
	}
	if f.pred(v) {
		f.actual.OnNext(v)
		return
	}
	f.upstream.Request(1)
}

func (f *filterSubscriber[T]) OnError(err error) {
	if f.done.TurnOn() {
		f.actual.OnError(err)
	}
}

func (f *filterSubscriber[T]) OnComplete() {
	if f.done.TurnOn() {
		f.actual.OnComplete()
	}
}

//***********************************
//  Distinct
//***********************************

// Distinct returns a stream dropping every item already seen by the run.
// The seen set is private to each run and grows with the number of distinct
// items, see DistinctBounded for a capped alternative.
func Distinct[T comparable](s Stream[T]) Stream[T] {
	return newStream[T](DistinctStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		seen := map[T]struct{}{}
		s.subscribe(rc, &filterSubscriber[T]{actual: actual, pred: func(v T) bool {
			if _, ok := seen[v]; ok {
				return false
			}
			seen[v] = struct{}{}
			return true
		}})
	})
}

// DistinctBounded returns a stream dropping items seen by the run, remembering
// at most size of the most recently seen items.
func DistinctBounded[T comparable](s Stream[T], size int) Stream[T] {
	if size <= 0 {
		return Failed[T](errors.Wrap(ErrInvalidArgument, "distinct size %d is not positive", size))
	}

	return newStream[T](DistinctStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		seen, err := lru.New[T, struct{}](size)
		if err != nil {
			Failed[T](err).subscribe(rc, actual)
			return
		}

		s.subscribe(rc, &filterSubscriber[T]{actual: actual, pred: func(v T) bool {
			found, _ := seen.ContainsOrAdd(v, struct{}{})
			return !found
		}})
	})
}

// DistinctUntilChanged returns a stream dropping items equal to the one
// emitted just before them.
func DistinctUntilChanged[T comparable](s Stream[T]) Stream[T] {
	return newStream[T](DistinctUntilChangedStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		var last T
		var hasLast bool
		s.subscribe(rc, &filterSubscriber[T]{actual: actual, pred: func(v T) bool {
			if hasLast && last == v {
				return false
			}
			last, hasLast = v, true
			return true
		}})
	})
}

//***********************************
//  Take
//***********************************

// Take returns a stream emitting at most n items. Once the nth item is
// emitted, upstream is cancelled and the stream completes.
func (s Stream[T]) Take(n int64) Stream[T] {
	if n < 0 {
		return Failed[T](errors.Wrap(ErrInvalidArgument, "take count %d is negative", n))
	}

	return newStream[T](TakeStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &takeSubscriber[T]{actual: actual, limit: n})
	})
}

type takeSubscriber[T any] struct {
	link
	actual   Subscriber[T]
	limit    int64
	received AtomicCounter
	asked    int64
}

func (t *takeSubscriber[T]) OnSubscribe(s Subscription) {
	t.upstream = s
	if t.limit == 0 {
		t.done.On()
		s.Cancel()
		t.actual.OnSubscribe(noopSubscription{})
		t.actual.OnComplete()
		return
	}
	t.actual.OnSubscribe(t)
}

func (t *takeSubscriber[T]) Request(n int64) {
	if n <= 0 {
		t.upstream.Request(n)
		return
	}

	for {
		current := atomic.LoadInt64(&t.asked)
		if current >= t.limit {
			return
		}

		next := addCap(current, n)
		if next > t.limit {
			next = t.limit
		}

		if atomic.CompareAndSwapInt64(&t.asked, current, next) {
			t.upstream.Request(next - current)
			return
		}
	}
}

func (t *takeSubscriber[T]) OnNext(v T) {
	if t.done.IsTrue() {
		return
	}

	received := t.received.Inc()
	t.actual.OnNext(v)

	if received == t.limit && t.done.TurnOn() {
		t.upstream.Cancel()
		t.actual.OnComplete()
	}
}

func (t *takeSubscriber[T]) OnError(err error) {
	if t.done.TurnOn() {
		t.actual.OnError(err)
	}
}

func (t *takeSubscriber[T]) OnComplete() {
	if t.done.TurnOn() {
		t.actual.OnComplete()
	}
}

//***********************************
//  Buffer
//***********************************

// Buffer returns a stream grouping items into slices of size. The last
// group may be shorter if the source completes mid-group.
func Buffer[T any](s Stream[T], size int) Stream[[]T] {
	if size <= 0 {
		return Failed[[]T](errors.Wrap(ErrInvalidArgument, "buffer size %d is not positive", size))
	}

	return newStream[[]T](BufferStage, s.stages, func(rc *runContext, actual Subscriber[[]T]) {
		s.subscribe(rc, &bufferSubscriber[T]{actual: actual, size: size})
	})
}

type bufferSubscriber[T any] struct {
	link
	actual Subscriber[[]T]
	size   int
	group  []T
}

func (b *bufferSubscriber[T]) OnSubscribe(s Subscription) {
	b.upstream = s
	b.actual.OnSubscribe(b)
}

func (b *bufferSubscriber[T]) Request(n int64) {
	if n <= 0 {
		b.upstream.Request(n)
		return
	}
	b.upstream.Request(mulCap(n, int64(b.size)))
}

func (b *bufferSubscriber[T]) OnNext(v T) {
	if b.done.IsTrue() {
		return
	}

	if b.group == nil {
		b.group = make([]T, 0, b.size)
	}

	b.group = append(b.group, v)
	if len(b.group) == b.size {
		group := b.group
		b.group = nil
		b.actual.OnNext(group)
	}
}

func (b *bufferSubscriber[T]) OnError(err error) {
	if b.done.TurnOn() {
		b.group = nil
		b.actual.OnError(err)
	}
}

func (b *bufferSubscriber[T]) OnComplete() {
	if !b.done.TurnOn() {
		return
	}
	if len(b.group) != 0 {
		group := b.group
		b.group = nil
		b.actual.OnNext(group)
	}
	b.actual.OnComplete()
}

//***********************************
//  DefaultIfEmpty
//***********************************

// DefaultIfEmpty returns a stream emitting value if the source completes
// without emitting anything.
func (s Stream[T]) DefaultIfEmpty(value T) Stream[T] {
	return newStream[T](DefaultIfEmptyStage, s.stages, func(rc *runContext, actual Subscriber[T]) {
		s.subscribe(rc, &defaultSubscriber[T]{actual: actual, value: value})
	})
}

type defaultSubscriber[T any] struct {
	link
	actual   Subscriber[T]
	value    T
	hasItems bool

	ml        sync.Mutex
	requested bool
	pending   bool
}

func (d *defaultSubscriber[T]) OnSubscribe(s Subscription) {
	d.upstream = s
	d.actual.OnSubscribe(d)
}

func (d *defaultSubscriber[T]) Request(n int64) {
	if n > 0 {
		d.ml.Lock()
		d.requested = true
		pending := d.pending
		d.pending = false
		d.ml.Unlock()

		if pending {
			d.actual.OnNext(d.value)
			d.actual.OnComplete()
			return
		}
	}
	d.upstream.Request(n)
}

func (d *defaultSubscriber[T]) OnNext(v T) {
	if d.done.IsTrue() {
		return
	}
	d.hasItems = true
	d.actual.OnNext(v)
}

func (d *defaultSubscriber[T]) OnError(err error) {
	if d.done.TurnOn() {
		d.actual.OnError(err)
	}
}

func (d *defaultSubscriber[T]) OnComplete() {
	if !d.done.TurnOn() {
		return
	}

	if d.hasItems {
		d.actual.OnComplete()
		return
	}

	d.ml.Lock()
	if !d.requested {
		d.pending = true
		d.ml.Unlock()
		return
	}
	d.ml.Unlock()

	d.actual.OnNext(d.value)
	d.actual.OnComplete()
}
