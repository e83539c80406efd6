package internal

import (
	"fmt"
	"sync"
	"time"

	"github.com/gokit/rxkit"
)

// TLog implements the rxkit.Logs interface, recording every message it
// receives for later assertions. Verbose also prints them out.
type TLog struct {
	Verbose bool

	ml       sync.Mutex
	levels   []rxkit.Level
	messages []string
}

// Emit records the message, it implements rxkit.Logs Emit method.
func (t *TLog) Emit(l rxkit.Level, e rxkit.LogMessage) {
	message := e.Message()
	if t.Verbose {
		fmt.Printf("[%s : %s] %s\n", time.Now().Format(time.RFC3339), l, message)
	}

	t.ml.Lock()
	t.levels = append(t.levels, l)
	t.messages = append(t.messages, message)
	t.ml.Unlock()
}

// Messages returns a copy of the recorded messages in order.
func (t *TLog) Messages() []string {
	t.ml.Lock()
	defer t.ml.Unlock()
	return append([]string(nil), t.messages...)
}

// Levels returns a copy of the levels of the recorded messages in order.
func (t *TLog) Levels() []rxkit.Level {
	t.ml.Lock()
	defer t.ml.Unlock()
	return append([]rxkit.Level(nil), t.levels...)
}

// Reset drops every recorded message.
func (t *TLog) Reset() {
	t.ml.Lock()
	t.levels = nil
	t.messages = nil
	t.ml.Unlock()
}
