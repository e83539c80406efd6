// Package kafkarx turns segmentio kafka-go readers into demand-gated streams.
package kafkarx

import (
	"context"
	"io"

	"github.com/gokit/errors"
	"github.com/gokit/rxkit"
	kafka "github.com/segmentio/kafka-go"
)

// Reader is the part of a *kafka.Reader a stream reads from.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures streams created by this package.
type Config struct {
	// Reader is used to create a new *kafka.Reader for every run.
	Reader kafka.ReaderConfig

	// Logs receives reader diagnostics, defaults to rxkit.CurrentLogs.
	Logs rxkit.Logs
}

func (c *Config) init() error {
	if c.Logs == nil {
		c.Logs = rxkit.CurrentLogs()
	}
	if len(c.Reader.Brokers) == 0 {
		return errors.New("Config.Reader.Brokers must be provided")
	}
	if c.Reader.Topic == "" {
		return errors.New("Config.Reader.Topic must be provided")
	}
	return nil
}

// Messages returns a stream reading the configured topic with a new reader
// per run. When the reader belongs to a consumer group, offsets are committed
// as messages are read.
func Messages(config Config) rxkit.Stream[kafka.Message] {
	if err := config.init(); err != nil {
		return rxkit.Failed[kafka.Message](err)
	}
	return Read(newReader(config), config.Logs)
}

// Deliveries is like Messages but offsets are only committed once a delivery
// is acknowledged. Config.Reader.GroupID must be set.
func Deliveries(config Config) rxkit.Stream[*Delivery] {
	if err := config.init(); err != nil {
		return rxkit.Failed[*Delivery](err)
	}
	if config.Reader.GroupID == "" {
		return rxkit.Failed[*Delivery](errors.New("Config.Reader.GroupID must be provided"))
	}
	return Fetch(newReader(config), config.Logs)
}

func newReader(config Config) func() (Reader, error) {
	return func() (Reader, error) {
		return kafka.NewReader(config.Reader), nil
	}
}

// Read returns a stream of the messages read from the Reader returned by
// open, which is called once per run. The reader is closed when the run ends
// and the stream completes if the reader is closed from elsewhere.
func Read(open func() (Reader, error), logs rxkit.Logs) rxkit.Stream[kafka.Message] {
	return rxkit.Using(open, func(reader Reader) rxkit.Stream[kafka.Message] {
		return rxkit.Pull(func(ctx context.Context) (kafka.Message, error) {
			return reader.ReadMessage(ctx)
		})
	}, closer(logs))
}

// Delivery is a fetched message whose offset is committed by Ack.
type Delivery struct {
	Message kafka.Message
	reader  Reader
}

// Ack commits the offset of the delivery.
func (d *Delivery) Ack(ctx context.Context) error {
	if err := d.reader.CommitMessages(ctx, d.Message); err != nil {
		return errors.Wrap(err, "Failed to commit message offset")
	}
	return nil
}

// Fetch is like Read but emits deliveries which must be acknowledged.
func Fetch(open func() (Reader, error), logs rxkit.Logs) rxkit.Stream[*Delivery] {
	return rxkit.Using(open, func(reader Reader) rxkit.Stream[*Delivery] {
		return rxkit.Pull(func(ctx context.Context) (*Delivery, error) {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				return nil, err
			}
			return &Delivery{Message: msg, reader: reader}, nil
		})
	}, closer(logs))
}

func closer(logs rxkit.Logs) func(Reader) {
	if logs == nil {
		logs = rxkit.CurrentLogs()
	}
	return func(reader Reader) {
		if err := reader.Close(); err != nil && err != io.EOF {
			err = errors.Wrap(err, "Failed to close kafka reader")
			rxkit.LogMsgWithContext(err.Error(), "context", nil).
				Write(rxkit.ERROR, logs)
		}
	}
}
