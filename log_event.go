package rxkit

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
)

//*****************************************************************
// LogEvent
//*****************************************************************

var (
	comma        = []byte(",")
	colon        = []byte(":")
	space        = []byte(" ")
	openBlock    = []byte("{")
	closingBlock = []byte("}")
	doubleQuote  = []byte("\"")
	logEventPool = sync.Pool{
		New: func() interface{} {
			return &LogEvent{content: make([]byte, 0, 256), r: 1}
		},
	}
)

// LogMsg requests allocation for a *LogEvent from the internal pool returning a *LogEvent for use
// which must be have it's Write() or Message() method called once done.
func LogMsg(message string, inherits ...func(event *LogEvent)) *LogEvent {
	event := logEventPool.Get().(*LogEvent)
	event.reset()
	event.addQuoted("message", message)
	event.endEntry()

	for _, op := range inherits {
		op(event)
	}
	return event
}

// LogMsgWithContext requests allocation for a *LogEvent from the internal pool returning a *LogEvent
// for use. It packs the fields into a internal object with the key for that object set to the value
// of ctx.
//
// If a hook is provided then the hook is used to add field key-value pairs to the root of the
// returned json.
func LogMsgWithContext(message string, ctx string, hook func(*LogEvent), inherits ...func(event *LogEvent)) *LogEvent {
	event := logEventPool.Get().(*LogEvent)
	event.reset()
	event.onRelease = func(s []byte) []byte {
		root := logEventPool.Get().(*LogEvent)
		root.reset()

		root.addQuoted("message", message)
		root.endEntry()

		if hook != nil {
			hook(root)
		}

		root.addRaw(ctx, s)
		root.end()

		content := root.content
		root.content = make([]byte, 0, 256)
		root.release()
		return content
	}

	for _, op := range inherits {
		op(event)
	}
	return event
}

// LogEvent builds a low-allocation JSON log entry from a message and a set
// of key-value pairs.
//
// Each *LogEvent is retrieved from a pool and will panic if used after
// Write or Message.
type LogEvent struct {
	r         uint32
	content   []byte
	onRelease func([]byte) []byte
}

// String adds a field name with string value.
func (l *LogEvent) String(name string, value string) *LogEvent {
	l.addRaw(name, []byte(strconv.Quote(value)))
	l.endEntry()
	return l
}

// Bytes adds a field name with bytes value. The bytes are expected to be
// valid JSON, no checks are made to ensure this.
func (l *LogEvent) Bytes(name string, value []byte) *LogEvent {
	l.addRaw(name, value)
	l.endEntry()
	return l
}

// Object adds a field name with object value.
func (l *LogEvent) Object(name string, handler func(event *LogEvent)) *LogEvent {
	inner := logEventPool.Get().(*LogEvent)
	inner.reset()

	handler(inner)
	inner.reduce(len(comma) + len(space))
	inner.end()

	l.addRaw(name, inner.content)
	l.endEntry()

	inner.resetContent()
	inner.release()
	return l
}

// ObjectJSON adds a field name with the JSON encoding of value. Values which
// fail to encode are recorded as their error text.
func (l *LogEvent) ObjectJSON(name string, value interface{}) *LogEvent {
	data, err := json.Marshal(value)
	if err != nil {
		return l.String(name, err.Error())
	}

	l.addRaw(name, data)
	l.endEntry()
	return l
}

// Err adds a field name with the error text of err, or null.
func (l *LogEvent) Err(name string, err error) *LogEvent {
	if err == nil {
		l.addRaw(name, []byte("null"))
		l.endEntry()
		return l
	}
	return l.String(name, err.Error())
}

// Bool adds a field name with bool value.
func (l *LogEvent) Bool(name string, value bool) *LogEvent {
	l.addRaw(name, []byte(strconv.FormatBool(value)))
	l.endEntry()
	return l
}

// Int adds a field name with int value.
func (l *LogEvent) Int(name string, value int) *LogEvent {
	l.addRaw(name, []byte(strconv.Itoa(value)))
	l.endEntry()
	return l
}

// Int64 adds a field name with int64 value.
func (l *LogEvent) Int64(name string, value int64) *LogEvent {
	l.addRaw(name, []byte(strconv.FormatInt(value, 10)))
	l.endEntry()
	return l
}

// Float64 adds a field name with float64 value.
func (l *LogEvent) Float64(name string, value float64) *LogEvent {
	l.addRaw(name, []byte(strconv.FormatFloat(value, 'E', -1, 64)))
	l.endEntry()
	return l
}

// Message returns the generated JSON of giving *LogEvent and releases it.
func (l *LogEvent) Message() string {
	if l.released() {
		panic("Re-using released *LogEvent")
	}

	// remove last comma and space
	l.reduce(len(comma) + len(space))
	l.end()

	if l.onRelease != nil {
		l.content = l.onRelease(l.content)
		l.onRelease = nil
	}

	content := string(l.content)
	l.resetContent()
	l.release()
	return content
}

// Write delivers giving log event as a generated message.
func (l *LogEvent) Write(ll Level, lg Logs) {
	lg.Emit(ll, Message(l.Message()))
}

func (l *LogEvent) reset() {
	atomic.StoreUint32(&l.r, 1)
	l.onRelease = nil
	l.begin()
}

func (l *LogEvent) reduce(d int) {
	rem := len(l.content) - d
	if rem < 1 {
		rem = 1
	}
	l.content = l.content[:rem]
}

func (l *LogEvent) resetContent() {
	l.content = l.content[:0]
}

func (l *LogEvent) released() bool {
	return atomic.LoadUint32(&l.r) == 0
}

func (l *LogEvent) release() {
	atomic.StoreUint32(&l.r, 0)
	logEventPool.Put(l)
}

func (l *LogEvent) begin() {
	l.content = append(l.content, openBlock...)
}

func (l *LogEvent) key(k string) {
	if l.released() {
		panic("Re-using released *LogEvent")
	}

	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, k...)
	l.content = append(l.content, doubleQuote...)
	l.content = append(l.content, colon...)
	l.content = append(l.content, space...)
}

func (l *LogEvent) addQuoted(k string, v string) {
	l.key(k)
	l.content = strconv.AppendQuote(l.content, v)
}

func (l *LogEvent) addRaw(k string, v []byte) {
	l.key(k)
	l.content = append(l.content, v...)
}

func (l *LogEvent) endEntry() {
	l.content = append(l.content, comma...)
	l.content = append(l.content, space...)
}

func (l *LogEvent) end() {
	l.content = append(l.content, closingBlock...)
}
