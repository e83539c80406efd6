package rxkit

import (
	"github.com/gokit/xid"
)

// runContext holds what is shared by all stages of a single run. It is
// created fresh by every Subscribe call and never shared between runs.
type runContext struct {
	id         xid.ID
	logs       Logs
	onContinue func(err error, item interface{})
}

func newRunContext() *runContext {
	return &runContext{id: xid.New(), logs: CurrentLogs()}
}

// ID returns the run identifier used in logs and events.
func (rc *runContext) ID() string {
	return rc.id.String()
}

// withContinue returns a copy of rc carrying fn as the continue handler,
// only stages upstream of the caller receive the copy.
func (rc *runContext) withContinue(fn func(err error, item interface{})) *runContext {
	next := *rc
	next.onContinue = fn
	return &next
}

// tryContinue hands an item-level error to the continue handler if one is
// installed and the error is recoverable. It returns true if the error was
// absorbed, in which case the caller must drop the item and replenish it.
func (rc *runContext) tryContinue(err error, item interface{}) bool {
	if rc.onContinue == nil || IsFatal(err) {
		return false
	}
	rc.onContinue(err, item)
	return true
}
