package rxkit

import (
	"github.com/gokit/es"
)

//***********************************
//  Lifecycle events
//***********************************

var events = es.New()

// Watcher is returned by Watch and removes the watch when stopped.
type Watcher interface {
	Stop()
}

// Watch adds fn to the process wide lifecycle event stream. fn receives
// SubscriptionStarted, SubscriptionTerminated and ErrorDropped values.
//
// fn is called on the goroutine which produced the event, it must not block.
func Watch(fn func(interface{})) Watcher {
	return events.Subscribe(fn)
}

// SubscriptionStarted is published when a run receives it's subscription.
type SubscriptionStarted struct {
	ID     string
	Stages []StageKind
}

// SubscriptionTerminated is published once when a run reaches a terminal state.
type SubscriptionTerminated struct {
	ID     string
	Reason Reason
	Err    error
}

// ErrorDropped is published when an error could not be delivered, either
// because no error handler was provided or the run had already terminated.
type ErrorDropped struct {
	ID  string
	Err error
}

func publish(event interface{}) {
	events.Publish(event)
}

// dropError logs err and publishes it as an ErrorDropped event, it never
// raises it to the caller.
func dropError(rc *runContext, err error) {
	LogMsgWithContext("error dropped", "context", nil).
		String("subscription", rc.ID()).
		Err("error", err).
		Write(ERROR, rc.logs)

	publish(ErrorDropped{ID: rc.ID(), Err: err})
}
