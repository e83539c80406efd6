// Package natsrx turns NATS subscriptions into demand-gated streams.
package natsrx

import (
	"context"
	"io"
	"time"

	"github.com/gokit/errors"
	"github.com/gokit/rxkit"
	nats "github.com/nats-io/go-nats"
)

// DefaultPollInterval is the time a run waits for a message before checking
// if it was cancelled.
const DefaultPollInterval = 100 * time.Millisecond

// MessageSource is the part of a synchronous NATS subscription a stream reads
// from, *nats.Subscription implements it.
type MessageSource interface {
	NextMsg(timeout time.Duration) (*nats.Msg, error)
	Unsubscribe() error
}

// Config configures streams created by this package.
type Config struct {
	// PollInterval bounds how long a run waits in NextMsg before it
	// checks for cancellation.
	PollInterval time.Duration

	// Logs receives subscription diagnostics, defaults to rxkit.CurrentLogs.
	Logs rxkit.Logs
}

func (c *Config) init() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logs == nil {
		c.Logs = rxkit.CurrentLogs()
	}
}

// Subscribe returns a stream of the messages published on subject. Every run
// creates it's own subscription and unsubscribes when the run ends.
// Messages are only read while there is outstanding demand, unread messages
// queue up in the client as NATS has no broker side flow control.
func Subscribe(conn *nats.Conn, subject string, config Config) rxkit.Stream[*nats.Msg] {
	return Stream(func() (MessageSource, error) {
		sub, err := conn.SubscribeSync(subject)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to subscribe to subject %q", subject)
		}
		return sub, nil
	}, config)
}

// QueueSubscribe is like Subscribe but joins queue, sharing the messages of
// subject with the other members of the queue.
func QueueSubscribe(conn *nats.Conn, subject string, queue string, config Config) rxkit.Stream[*nats.Msg] {
	return Stream(func() (MessageSource, error) {
		sub, err := conn.QueueSubscribeSync(subject, queue)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to subscribe to subject %q with queue %q", subject, queue)
		}
		return sub, nil
	}, config)
}

// Stream returns a stream reading from the MessageSource returned by open,
// which is called once per run. The source completes the stream once it's
// subscription or connection is closed.
func Stream(open func() (MessageSource, error), config Config) rxkit.Stream[*nats.Msg] {
	config.init()

	return rxkit.Using(open, func(src MessageSource) rxkit.Stream[*nats.Msg] {
		return rxkit.Pull(func(ctx context.Context) (*nats.Msg, error) {
			return next(ctx, src, config.PollInterval)
		})
	}, func(src MessageSource) {
		if err := src.Unsubscribe(); err != nil && err != nats.ErrBadSubscription && err != nats.ErrConnectionClosed {
			rxkit.LogMsg("Failed to unsubscribe").
				Err("error", err).
				Write(rxkit.ERROR, config.Logs)
		}
	})
}

func next(ctx context.Context, src MessageSource, poll time.Duration) (*nats.Msg, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := src.NextMsg(poll)
		switch err {
		case nil:
			return msg, nil
		case nats.ErrTimeout:
			continue
		case nats.ErrBadSubscription, nats.ErrConnectionClosed:
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}
