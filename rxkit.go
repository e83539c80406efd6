package rxkit

import (
	"math"
)

// Unbounded is the demand value which lifts any limit on a producer,
// requesting it to emit as fast as it can. Demand saturates at this
// value and is never decremented once reached.
const Unbounded int64 = math.MaxInt64

//***********************************
//  Publisher
//***********************************

// Publisher is a provider of a potentially unbounded number of sequenced
// elements, publishing them according to the demand received from it's
// Subscriber.
//
// A Publisher can serve multiple Subscribers, each call to Subscribe starts a
// new and independent run.
type Publisher[T any] interface {
	Subscribe(Subscriber[T])
}

//***********************************
//  Subscriber
//***********************************

// Subscriber will receive a call to OnSubscribe once after being passed to
// Publisher.Subscribe, the Subscription provided lets the Subscriber request
// elements from the Publisher.
//
// OnNext is called at most as many times as requested. OnError and OnComplete
// are terminal, only one of them is ever called and nothing follows it.
type Subscriber[T any] interface {
	OnSubscribe(Subscription)
	OnNext(T)
	OnError(error)
	OnComplete()
}

//***********************************
//  Subscription
//***********************************

// Subscription represents a one-to-one lifecycle of a Subscriber subscribing
// to a Publisher.
type Subscription interface {
	// Request adds n to the outstanding demand of the subscription.
	// A value of n <= 0 is a protocol violation.
	Request(n int64)

	// Cancel asks the producer to stop emitting and release it's resources.
	Cancel()
}

//***********************************
//  Disposable
//***********************************

// Disposable is a handle returned by callback based subscriptions which
// allows the caller to cancel the run at any point.
type Disposable interface {
	Dispose()
	Disposed() bool
}

//***********************************
//  Signal
//***********************************

// SignalKind identifies the type of a Signal.
type SignalKind uint8

// constants of signal kinds.
const (
	NextSignal SignalKind = iota + 1
	ErrorSignal
	CompleteSignal
)

// String implements the Stringer interface.
func (k SignalKind) String() string {
	switch k {
	case NextSignal:
		return "onNext"
	case ErrorSignal:
		return "onError"
	case CompleteSignal:
		return "onComplete"
	}
	return "unknown"
}

// Signal is the single event unit flowing through a stream.
type Signal[T any] struct {
	Kind  SignalKind
	Value T
	Err   error
}

// NextOf returns a next signal carrying v.
func NextOf[T any](v T) Signal[T] {
	return Signal[T]{Kind: NextSignal, Value: v}
}

// ErrorOf returns an error signal carrying err.
func ErrorOf[T any](err error) Signal[T] {
	return Signal[T]{Kind: ErrorSignal, Err: err}
}

// CompleteOf returns a completion signal.
func CompleteOf[T any]() Signal[T] {
	return Signal[T]{Kind: CompleteSignal}
}

// IsTerminal returns true if signal ends a stream.
func (s Signal[T]) IsTerminal() bool {
	return s.Kind == ErrorSignal || s.Kind == CompleteSignal
}

//***********************************
//  Reason
//***********************************

// Reason tags the way a run ended, it is handed to DoFinally hooks.
type Reason uint8

// constants of termination reasons.
const (
	Completed Reason = iota + 1
	Errored
	Cancelled
)

// String implements the Stringer interface.
func (r Reason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

//***********************************
//  StageKind
//***********************************

// StageKind names a stage of a pipeline.
type StageKind uint8

// constants of stage kinds.
const (
	SourceStage StageKind = iota + 1
	MapStage
	FilterStage
	TakeStage
	BufferStage
	DistinctStage
	DistinctUntilChangedStage
	DefaultIfEmptyStage
	CountStage
	CollectStage
	DoOnErrorStage
	OnErrorContinueStage
	OnErrorResumeStage
	DoFinallyStage
	LogStage
	TapStage
	DelayStage
	ZipStage
	RetryStage
	NextStage
)

var stageNames = map[StageKind]string{
	SourceStage:               "source",
	MapStage:                  "map",
	FilterStage:               "filter",
	TakeStage:                 "take",
	BufferStage:               "buffer",
	DistinctStage:             "distinct",
	DistinctUntilChangedStage: "distinctUntilChanged",
	DefaultIfEmptyStage:       "defaultIfEmpty",
	CountStage:                "count",
	CollectStage:              "collect",
	DoOnErrorStage:            "doOnError",
	OnErrorContinueStage:      "onErrorContinue",
	OnErrorResumeStage:        "onErrorResume",
	DoFinallyStage:            "doFinally",
	LogStage:                  "log",
	TapStage:                  "tap",
	DelayStage:                "delay",
	ZipStage:                  "zip",
	RetryStage:                "retry",
	NextStage:                 "next",
}

// String implements the Stringer interface.
func (k StageKind) String() string {
	if name, ok := stageNames[k]; ok {
		return name
	}
	return "unknown"
}

// appendStage returns a new stage list, the parent list is never modified.
func appendStage(parent []StageKind, kind StageKind) []StageKind {
	stages := make([]StageKind, len(parent)+1)
	copy(stages, parent)
	stages[len(parent)] = kind
	return stages
}

func copyStages(stages []StageKind) []StageKind {
	cp := make([]StageKind, len(stages))
	copy(cp, stages)
	return cp
}
