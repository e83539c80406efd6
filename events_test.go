package rxkit_test

import (
	"sync"
	"testing"

	"github.com/gokit/rxkit"
	"github.com/gokit/rxkit/internal"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	ml     sync.Mutex
	events []interface{}
}

func (e *eventLog) record(event interface{}) {
	e.ml.Lock()
	e.events = append(e.events, event)
	e.ml.Unlock()
}

// forRun returns the events published for the run with stages.
func (e *eventLog) forRun(stages []rxkit.StageKind) []interface{} {
	e.ml.Lock()
	defer e.ml.Unlock()

	var id string
	for _, event := range e.events {
		if started, ok := event.(rxkit.SubscriptionStarted); ok && equalStages(started.Stages, stages) {
			id = started.ID
			break
		}
	}

	var found []interface{}
	for _, event := range e.events {
		switch ev := event.(type) {
		case rxkit.SubscriptionStarted:
			if ev.ID == id {
				found = append(found, ev)
			}
		case rxkit.SubscriptionTerminated:
			if ev.ID == id {
				found = append(found, ev)
			}
		case rxkit.ErrorDropped:
			if ev.ID == id {
				found = append(found, ev)
			}
		}
	}
	return found
}

func equalStages(a, b []rxkit.StageKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWatch_Lifecycle(t *testing.T) {
	var log eventLog
	watcher := rxkit.Watch(log.record)
	defer watcher.Stop()

	stream := rxkit.Range(1, 3).Filter(func(v int) bool { return v > 1 }).DefaultIfEmpty(0)
	_, err := collect(stream)
	require.NoError(t, err)

	stages := []rxkit.StageKind{rxkit.SourceStage, rxkit.FilterStage, rxkit.DefaultIfEmptyStage, rxkit.CollectStage}
	events := log.forRun(stages)
	require.Len(t, events, 2)

	started := events[0].(rxkit.SubscriptionStarted)
	require.NotEmpty(t, started.ID)

	terminated := events[1].(rxkit.SubscriptionTerminated)
	require.Equal(t, started.ID, terminated.ID)
	require.Equal(t, rxkit.Completed, terminated.Reason)
	require.NoError(t, terminated.Err)
}

func TestWatch_Cancelled(t *testing.T) {
	var log eventLog
	watcher := rxkit.Watch(log.record)
	defer watcher.Stop()

	rec := newRecorder[int](1)
	rxkit.Range(1, 3).DelayElements(0).Subscribe(rec)
	rec.cancel()

	events := log.forRun([]rxkit.StageKind{rxkit.SourceStage, rxkit.DelayStage})
	require.Len(t, events, 2)
	require.Equal(t, rxkit.Cancelled, events[1].(rxkit.SubscriptionTerminated).Reason)
}

func TestWatch_ErrorDropped(t *testing.T) {
	logs := &internal.TLog{}
	rxkit.SetLogs(logs)
	defer rxkit.SetLogs(nil)

	var log eventLog
	watcher := rxkit.Watch(log.record)
	defer watcher.Stop()

	disposable := rxkit.Failed[int](errOdd).Tap(rxkit.Hooks[int]{}).SubscribeFunc(nil, nil, nil)
	require.True(t, disposable.Disposed())

	events := log.forRun([]rxkit.StageKind{rxkit.SourceStage, rxkit.TapStage})
	require.Len(t, events, 3)

	dropped := events[1].(rxkit.ErrorDropped)
	require.Equal(t, errOdd, rxkit.Cause(dropped.Err))

	terminated := events[2].(rxkit.SubscriptionTerminated)
	require.Equal(t, rxkit.Errored, terminated.Reason)
	require.Equal(t, errOdd, rxkit.Cause(terminated.Err))

	require.Contains(t, logs.Levels(), rxkit.ERROR)
}
