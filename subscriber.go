package rxkit

import (
	"sync"
)

//***********************************
//  SubscriberParts
//***********************************

// SubscriberParts assembles a BaseSubscriber from hook functions. Hooks
// receive the subscriber so they can call Request or Cancel on it, which is
// how a custom subscriber controls backpressure.
//
// A nil OnSubscribe requests unbounded demand, a nil OnError logs and drops
// the error. Other nil hooks are skipped.
type SubscriberParts[T any] struct {
	OnSubscribe func(sub *BaseSubscriber[T])
	OnNext      func(sub *BaseSubscriber[T], value T)
	OnError     func(sub *BaseSubscriber[T], err error)
	OnComplete  func(sub *BaseSubscriber[T])
	OnFinally   func(sub *BaseSubscriber[T], reason Reason)
}

// Build returns a new BaseSubscriber using the parts, a BaseSubscriber may
// only be subscribed once.
func (p SubscriberParts[T]) Build() *BaseSubscriber[T] {
	return &BaseSubscriber[T]{parts: p}
}

//***********************************
//  BaseSubscriber
//***********************************

// BaseSubscriber implements Subscriber by calling it's SubscriberParts. It
// also implements Disposable.
type BaseSubscriber[T any] struct {
	parts SubscriberParts[T]

	ml         sync.Mutex
	sub        Subscription
	subscribed AtomicBool
	done       AtomicBool
	finally    sync.Once
}

// OnSubscribe implements the Subscriber interface.
func (b *BaseSubscriber[T]) OnSubscribe(s Subscription) {
	if !b.subscribed.TurnOn() {
		s.Cancel()
		return
	}

	b.ml.Lock()
	b.sub = s
	b.ml.Unlock()

	if b.done.IsTrue() {
		s.Cancel()
		return
	}

	if b.parts.OnSubscribe == nil {
		s.Request(Unbounded)
		return
	}
	b.parts.OnSubscribe(b)
}

// OnNext implements the Subscriber interface.
func (b *BaseSubscriber[T]) OnNext(v T) {
	if b.done.IsTrue() {
		return
	}
	if b.parts.OnNext != nil {
		b.parts.OnNext(b, v)
	}
}

// OnError implements the Subscriber interface.
func (b *BaseSubscriber[T]) OnError(err error) {
	if !b.done.TurnOn() {
		return
	}

	if b.parts.OnError != nil {
		b.parts.OnError(b, err)
	} else {
		LogMsg("unhandled subscriber error").
			Err("error", err).
			Write(ERROR, CurrentLogs())
	}
	b.runFinally(Errored)
}

// OnComplete implements the Subscriber interface.
func (b *BaseSubscriber[T]) OnComplete() {
	if !b.done.TurnOn() {
		return
	}

	if b.parts.OnComplete != nil {
		b.parts.OnComplete(b)
	}
	b.runFinally(Completed)
}

// Request adds n to the demand of the run, it does nothing before the
// subscriber was subscribed.
func (b *BaseSubscriber[T]) Request(n int64) {
	if sub := b.subscription(); sub != nil {
		sub.Request(n)
	}
}

// Cancel cancels the run, no further hooks are called apart from OnFinally.
func (b *BaseSubscriber[T]) Cancel() {
	if !b.done.TurnOn() {
		return
	}
	if sub := b.subscription(); sub != nil {
		sub.Cancel()
	}
	b.runFinally(Cancelled)
}

// Dispose implements the Disposable interface.
func (b *BaseSubscriber[T]) Dispose() {
	b.Cancel()
}

// Disposed returns true once the run terminated or was cancelled.
func (b *BaseSubscriber[T]) Disposed() bool {
	return b.done.IsTrue()
}

func (b *BaseSubscriber[T]) subscription() Subscription {
	b.ml.Lock()
	defer b.ml.Unlock()
	return b.sub
}

func (b *BaseSubscriber[T]) runFinally(reason Reason) {
	if b.parts.OnFinally == nil {
		return
	}
	b.finally.Do(func() {
		b.parts.OnFinally(b, reason)
	})
}
