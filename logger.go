package rxkit

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

//***************************************************************************
// Level
//***************************************************************************

// Level defines different level warnings for giving
// log events.
type Level uint8

// constants of log levels this package respect.
// They are capitalize to ensure no naming conflict.
const (
	INFO Level = 1 << iota
	DEBUG
	WARN
	ERROR
	PANIC
)

// String implements the Stringer interface.
func (l Level) String() string {
	switch l {
	case INFO:
		return "INFO"
	case ERROR:
		return "ERROR"
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case PANIC:
		return "PANIC"
	}
	return "UNKNOWN"
}

// LogMessage defines an interface which exposes a method for retrieving
// log details for giving log item.
type LogMessage interface {
	Message() string
}

// Message implements the LogMessage interface for a plain string.
type Message string

// Message returns the string value of m.
func (m Message) Message() string {
	return string(m)
}

// Logs defines a acceptable logging interface which all operators will
// respect and use to deliver diagnostics, this frees this package from
// locking users into a giving implementation.
type Logs interface {
	Emit(Level, LogMessage)
}

//*****************************************************************
// DrainLog
//*****************************************************************

// DrainLog implements the Logs interface.
type DrainLog struct{}

// Emit does nothing with provided arguments.
func (DrainLog) Emit(_ Level, _ LogMessage) {}

//*****************************************************************
// ZapLogs
//*****************************************************************

// ZapLogs implements the Logs interface on top of a zap logger.
// Log events which carry JSON content are attached as raw JSON under the
// "event" field.
type ZapLogs struct {
	Logger *zap.Logger
}

// NewZapLogs returns a new instance of ZapLogs. A nil logger means the
// process wide zap logger, see zap.ReplaceGlobals.
func NewZapLogs(logger *zap.Logger) *ZapLogs {
	return &ZapLogs{Logger: logger}
}

// Emit implements the Logs interface.
func (z *ZapLogs) Emit(level Level, msg LogMessage) {
	logger := z.Logger
	if logger == nil {
		logger = zap.L()
	}

	content := msg.Message()
	field := zap.String("event", content)
	if json.Valid([]byte(content)) {
		field = zap.Any("event", json.RawMessage(content))
	}

	switch level {
	case DEBUG:
		logger.Debug("rxkit", field)
	case WARN:
		logger.Warn("rxkit", field)
	case ERROR, PANIC:
		logger.Error("rxkit", field)
	default:
		logger.Info("rxkit", field)
	}
}

//*****************************************************************
// Default logs
//*****************************************************************

var (
	defaultLogsMu sync.RWMutex
	defaultLogs   Logs = &ZapLogs{}
)

// SetLogs replaces the Logs used by runs which were not given one.
// A nil value restores the zap backed default.
func SetLogs(logs Logs) {
	if logs == nil {
		logs = &ZapLogs{}
	}
	defaultLogsMu.Lock()
	defaultLogs = logs
	defaultLogsMu.Unlock()
}

// CurrentLogs returns the Logs used by runs which were not given one.
func CurrentLogs() Logs {
	defaultLogsMu.RLock()
	defer defaultLogsMu.RUnlock()
	return defaultLogs
}
