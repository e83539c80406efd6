// Package mailbox provides a concurrency-safe queue which goroutines can
// block on until items are pushed into it.
package mailbox

import (
	"sync"

	"github.com/gokit/errors"
)

// ErrPushFailed is returned when mailbox has reached storage limit.
var ErrPushFailed = errors.New("failed to push into mailbox")

// ErrMailboxEmpty is returned when mailbox is empty of pending items.
var ErrMailboxEmpty = errors.New("mailbox is empty")

// Strategy defines a int type to represent a giving strategy.
type Strategy int

// constants.
const (
	DropNew Strategy = iota
	DropOld
)

// Invoker exposes methods to signal the different states of a mailbox
// for external systems to plugin, such as metrics.
type Invoker[T any] interface {
	InvokedFull()
	InvokedEmpty()
	InvokedDropped(T)
	InvokedReceived(T)
	InvokedDispatched(T)
}

type node[T any] struct {
	value T
	next  *node[T]
	prev  *node[T]
}

// BoxQueue defines a queue implementation safe for concurrent-use
// across go-routines, which provides ability to requeue, pop and push
// new items. BoxQueue uses lock to guarantee safe concurrent use.
type BoxQueue[T any] struct {
	bm       sync.Mutex
	pushCond *sync.Cond
	head     *node[T]
	tail     *node[T]
	capped   int
	total    int
	closed   bool
	strategy Strategy
	invoker  Invoker[T]
}

// BoundedBoxQueue returns a new instance of a bounded box queue.
// Items will be queued till capped is reached, after which the strategy
// decides if the new or the oldest item is dropped.
// A cap value of -1 means there will be no maximum limit
// of allowed items in queue.
func BoundedBoxQueue[T any](capped int, method Strategy, invoker Invoker[T]) *BoxQueue[T] {
	bq := &BoxQueue[T]{
		capped:   capped,
		strategy: method,
		invoker:  invoker,
	}
	bq.pushCond = sync.NewCond(&bq.bm)
	return bq
}

// UnboundedBoxQueue returns a new instance of a unbounded box queue.
// Items will be queue endlessly.
func UnboundedBoxQueue[T any](invoker Invoker[T]) *BoxQueue[T] {
	return BoundedBoxQueue[T](-1, DropNew, invoker)
}

// Close releases every goroutine blocked in Wait, now and in the future.
// Items can still be pushed and popped after Close.
func (bq *BoxQueue[T]) Close() {
	bq.bm.Lock()
	bq.closed = true
	bq.bm.Unlock()

	bq.pushCond.Broadcast()
}

// Clear resets and deletes all elements pending within queue
func (bq *BoxQueue[T]) Clear() {
	bq.bm.Lock()
	bq.head = nil
	bq.tail = nil
	bq.total = 0
	bq.bm.Unlock()

	bq.pushCond.Broadcast()
}

// Wait will block current goroutine till there is an item pushed into
// the queue or the queue is closed.
func (bq *BoxQueue[T]) Wait() {
	bq.bm.Lock()
	for bq.isEmpty() && !bq.closed {
		bq.pushCond.Wait()
	}
	bq.bm.Unlock()
}

// Push adds the item to the back of the queue.
//
// Push can be safely called from multiple goroutines.
// Based on strategy if capped, then an item will be dropped.
func (bq *BoxQueue[T]) Push(value T) error {
	var dropped T
	var full, hasDropped bool

	bq.bm.Lock()
	if bq.capped != -1 && bq.total >= bq.capped {
		full = true
		switch bq.strategy {
		case DropNew:
			bq.bm.Unlock()
			if bq.invoker != nil {
				bq.invoker.InvokedFull()
				bq.invoker.InvokedDropped(value)
			}
			return errors.Wrap(ErrPushFailed, "mailbox reached cap of %d", bq.capped)
		case DropOld:
			dropped, hasDropped = bq.popHead()
		}
	}

	n := &node[T]{value: value}
	if bq.head == nil && bq.tail == nil {
		bq.head, bq.tail = n, n
	} else {
		bq.tail.next = n
		n.prev = bq.tail
		bq.tail = n
	}
	bq.total++
	bq.bm.Unlock()

	if bq.invoker != nil {
		if full {
			bq.invoker.InvokedFull()
		}
		if hasDropped {
			bq.invoker.InvokedDropped(dropped)
		}
		bq.invoker.InvokedReceived(value)
	}

	bq.pushCond.Broadcast()
	return nil
}

// Unpop adds back item to the font of the queue.
//
// Unpop can be safely called from multiple goroutines.
// If queue is capped and max was reached, then last added
// item is removed to make space for item to be added back.
// This means strategy will be ignored since this is an attempt
// to re-add an item back into the top of the queue.
func (bq *BoxQueue[T]) Unpop(value T) {
	bq.bm.Lock()
	if bq.capped != -1 && bq.total >= bq.capped {
		bq.unshift()
	}

	n := &node[T]{value: value}
	if bq.head == nil {
		bq.head, bq.tail = n, n
	} else {
		n.next = bq.head
		bq.head.prev = n
		bq.head = n
	}
	bq.total++
	bq.bm.Unlock()

	if bq.invoker != nil {
		bq.invoker.InvokedReceived(value)
	}

	bq.pushCond.Broadcast()
}

// Pop removes the item from the front of the queue.
//
// Pop can be safely called from multiple goroutines.
func (bq *BoxQueue[T]) Pop() (T, error) {
	bq.bm.Lock()
	value, ok := bq.popHead()
	bq.bm.Unlock()

	if !ok {
		if bq.invoker != nil {
			bq.invoker.InvokedEmpty()
		}
		return value, errors.Wrap(ErrMailboxEmpty, "empty mailbox")
	}

	if bq.invoker != nil {
		bq.invoker.InvokedDispatched(value)
	}
	return value, nil
}

// popHead must be called with the lock held.
func (bq *BoxQueue[T]) popHead() (T, bool) {
	var zero T

	head := bq.head
	if head == nil {
		return zero, false
	}

	bq.total--
	bq.head = head.next
	if bq.head == nil {
		bq.tail = nil
	} else {
		bq.head.prev = nil
	}

	value := head.value
	head.next = nil
	head.value = zero
	return value, true
}

// unshift discards the tail of queue, allowing new space. It must be called
// with the lock held.
func (bq *BoxQueue[T]) unshift() {
	tail := bq.tail
	if tail == nil {
		return
	}

	bq.total--
	bq.tail = tail.prev
	if bq.tail == nil {
		bq.head = nil
	} else {
		bq.tail.next = nil
	}
	tail.prev = nil
}

// Cap returns current cap of items.
func (bq *BoxQueue[T]) Cap() int {
	return bq.capped
}

// Total returns total of item in mailbox.
func (bq *BoxQueue[T]) Total() int {
	bq.bm.Lock()
	defer bq.bm.Unlock()
	return bq.total
}

// IsEmpty returns true/false if the queue is empty.
func (bq *BoxQueue[T]) IsEmpty() bool {
	bq.bm.Lock()
	defer bq.bm.Unlock()
	return bq.isEmpty()
}

func (bq *BoxQueue[T]) isEmpty() bool {
	return bq.head == nil
}
