package rxkit

import (
	"fmt"

	"github.com/gokit/errors"
)

// errors ...
var (
	ErrTimeout             = errors.New("blocking wait timed out")
	ErrNoValue             = errors.New("future completed without a value")
	ErrInvalidDemand       = errors.New("request amount must be positive")
	ErrUnrequestedEmission = errors.New("producer emitted without outstanding demand")
	ErrInvalidArgument     = errors.New("invalid operator argument")
	ErrRetriesExhausted    = errors.New("retries exhausted")
)

// ErrorKind classifies a StreamError.
type ErrorKind uint8

// constants of error kinds.
const (
	UpstreamError ErrorKind = iota + 1
	ProtocolError
	TimeoutError
)

// String implements the Stringer interface.
func (k ErrorKind) String() string {
	switch k {
	case UpstreamError:
		return "UpstreamError"
	case ProtocolError:
		return "ProtocolError"
	case TimeoutError:
		return "TimeoutError"
	}
	return "UnknownError"
}

// StreamError carries a failure through a pipeline along with it's kind and,
// for item-level failures, the item which caused it.
//
// Fatal errors are never absorbed by OnErrorContinue.
type StreamError struct {
	Kind    ErrorKind
	Fatal   bool
	HasItem bool
	Item    interface{}
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

// Unwrap returns the underline error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// String returns a short description of the error.
func (e *StreamError) String() string {
	if e.HasItem {
		return fmt.Sprintf("%s(item=%v): %s", e.Kind, e.Item, e.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Error())
}

// upstreamError wraps err as an UpstreamError unless it already is a StreamError.
func upstreamError(err error) error {
	if _, ok := err.(*StreamError); ok {
		return err
	}
	return &StreamError{Kind: UpstreamError, Err: err}
}

// itemError wraps err as an UpstreamError raised while processing item.
func itemError(err error, item interface{}) error {
	if se, ok := err.(*StreamError); ok {
		return se
	}
	return &StreamError{Kind: UpstreamError, Err: err, Item: item, HasItem: true}
}

func protocolError(err error, format string, v ...interface{}) error {
	return &StreamError{Kind: ProtocolError, Fatal: true, Err: errors.Wrap(err, format, v...)}
}

func timeoutError(err error) error {
	return &StreamError{Kind: TimeoutError, Err: err}
}

// unwrapOnce returns the error wrapped by err, or nil.
func unwrapOnce(err error) error {
	switch e := err.(type) {
	case *StreamError:
		return e.Err
	case *errors.PointingError:
		return e.Parent
	case interface{ Unwrap() error }:
		return e.Unwrap()
	}
	return nil
}

// streamErrorOf walks the chain of err looking for a *StreamError.
func streamErrorOf(err error) (*StreamError, bool) {
	for err != nil {
		if se, ok := err.(*StreamError); ok {
			return se, true
		}
		err = unwrapOnce(err)
	}
	return nil, false
}

// Cause returns the root error of err, looking through StreamError and
// gokit/errors wrapping. Sentinels can be compared against the result.
func Cause(err error) error {
	for err != nil {
		next := unwrapOnce(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}

// Is returns true if target is found anywhere in the chain of err.
func Is(err error, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		err = unwrapOnce(err)
	}
	return false
}

// IsTimeout returns true if err is a TimeoutError.
func IsTimeout(err error) bool {
	se, ok := streamErrorOf(err)
	return ok && se.Kind == TimeoutError
}

// IsProtocol returns true if err is a ProtocolError.
func IsProtocol(err error) bool {
	se, ok := streamErrorOf(err)
	return ok && se.Kind == ProtocolError
}

// IsFatal returns true if err must never be recovered locally.
func IsFatal(err error) bool {
	se, ok := streamErrorOf(err)
	return ok && se.Fatal
}

// ItemOf returns the offending item carried by an item-level error.
func ItemOf(err error) (interface{}, bool) {
	se, ok := streamErrorOf(err)
	if !ok || !se.HasItem {
		return nil, false
	}
	return se.Item, true
}
