package rxkit

import (
	"sync"

	"github.com/gokit/rxkit/mailbox"
)

// DefaultPrefetch is the demand an Iterator keeps requested ahead of it's
// consumer when no prefetch is configured.
const DefaultPrefetch = 32

// IteratorConfig configures an Iterator.
type IteratorConfig[T any] struct {
	// Prefetch is the number of items requested ahead of the consumer.
	// Unbounded removes backpressure, zero or less uses DefaultPrefetch.
	Prefetch int64

	// Invoker, if set, observes the mailbox signals are queued in.
	Invoker mailbox.Invoker[Signal[T]]
}

// ToIterator returns a blocking Iterator over a new run of the stream.
// Blocking consumers are discouraged outside of tests and programs
// bridging to synchronous code.
func (s Stream[T]) ToIterator() *Iterator[T] {
	return s.ToIteratorWith(IteratorConfig[T]{})
}

// ToIteratorWith is like ToIterator but uses config.
func (s Stream[T]) ToIteratorWith(config IteratorConfig[T]) *Iterator[T] {
	prefetch := config.Prefetch
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}

	limit := prefetch - (prefetch >> 2)
	if prefetch == Unbounded {
		limit = Unbounded
	}

	it := &Iterator[T]{
		queue:    mailbox.UnboundedBoxQueue[Signal[T]](config.Invoker),
		prefetch: prefetch,
		limit:    limit,
	}
	s.Subscribe(it)
	return it
}

// Iterator pulls items from a run of a stream, blocking until each is
// available. Demand is requested in batches of the configured prefetch and
// replenished as items are consumed.
//
// An Iterator must be used from a single goroutine, Close may be called from
// any goroutine.
type Iterator[T any] struct {
	queue    *mailbox.BoxQueue[Signal[T]]
	prefetch int64
	limit    int64
	consumed int64
	final    *Signal[T]
	closed   AtomicBool

	ml  sync.Mutex
	sub Subscription
}

// OnSubscribe implements the Subscriber interface.
func (it *Iterator[T]) OnSubscribe(s Subscription) {
	it.ml.Lock()
	it.sub = s
	it.ml.Unlock()

	if it.closed.IsTrue() {
		s.Cancel()
		return
	}
	s.Request(it.prefetch)
}

// OnNext implements the Subscriber interface.
func (it *Iterator[T]) OnNext(v T) {
	it.queue.Push(NextOf(v))
}

// OnError implements the Subscriber interface.
func (it *Iterator[T]) OnError(err error) {
	it.queue.Push(ErrorOf[T](err))
}

// OnComplete implements the Subscriber interface.
func (it *Iterator[T]) OnComplete() {
	it.queue.Push(CompleteOf[T]())
}

// Next blocks until the next item is available and returns it with true.
// Once the stream completed or the iterator was closed it returns false, if
// the stream failed it returns false with the error, on every call.
func (it *Iterator[T]) Next() (T, bool, error) {
	var zero T
	if it.final != nil {
		return zero, false, it.final.Err
	}

	for {
		if it.closed.IsTrue() {
			return zero, false, nil
		}

		it.queue.Wait()

		signal, err := it.queue.Pop()
		if err != nil {
			continue
		}

		if signal.IsTerminal() {
			it.final = &signal
			return zero, false, signal.Err
		}

		it.replenish()
		return signal.Value, true, nil
	}
}

func (it *Iterator[T]) replenish() {
	if it.limit == Unbounded {
		return
	}

	it.consumed++
	if it.consumed < it.limit {
		return
	}

	amount := it.consumed
	it.consumed = 0
	if sub := it.subscription(); sub != nil {
		sub.Request(amount)
	}
}

// Close cancels the run and releases a blocked Next.
func (it *Iterator[T]) Close() {
	if !it.closed.TurnOn() {
		return
	}

	if sub := it.subscription(); sub != nil {
		sub.Cancel()
	}
	it.queue.Close()
}

func (it *Iterator[T]) subscription() Subscription {
	it.ml.Lock()
	defer it.ml.Unlock()
	return it.sub
}
