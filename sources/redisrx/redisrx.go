// Package redisrx turns redis pubsub subscriptions into demand-gated streams.
package redisrx

import (
	"context"

	redis "github.com/go-redis/redis"
	"github.com/gokit/errors"
	"github.com/gokit/rxkit"
)

// Receiver is the part of a *redis.PubSub a stream reads from.
type Receiver interface {
	ReceiveMessage() (*redis.Message, error)
	Close() error
}

// Subscribe returns a stream of the messages published on channels. Every
// run opens it's own subscription and closes it when the run ends.
//
// Redis pubsub has no flow control, messages published while there is no
// outstanding demand are buffered by the client.
func Subscribe(client *redis.Client, logs rxkit.Logs, channels ...string) rxkit.Stream[*redis.Message] {
	return Stream(func() (Receiver, error) {
		ps := client.Subscribe(channels...)

		// wait for the subscription to be confirmed before reading messages.
		if _, err := ps.Receive(); err != nil {
			ps.Close()
			return nil, errors.Wrap(err, "Failed to subscribe to channels %q", channels)
		}
		return ps, nil
	}, logs)
}

// Stream returns a stream reading the Receiver returned by open, which is
// called once per run. ReceiveMessage returning io.EOF completes the stream,
// any other error fails it. Cancelling the run closes the receiver, which
// releases a pending ReceiveMessage.
func Stream(open func() (Receiver, error), logs rxkit.Logs) rxkit.Stream[*redis.Message] {
	if logs == nil {
		logs = rxkit.CurrentLogs()
	}

	return rxkit.Using(open, func(rc Receiver) rxkit.Stream[*redis.Message] {
		return rxkit.Pull(func(_ context.Context) (*redis.Message, error) {
			return rc.ReceiveMessage()
		})
	}, func(rc Receiver) {
		if err := rc.Close(); err != nil {
			err = errors.Wrap(err, "Failed to close subscription")
			rxkit.LogMsgWithContext(err.Error(), "context", nil).
				Write(rxkit.ERROR, logs)
		}
	})
}
