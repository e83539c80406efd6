// Package saramarx turns sarama partition consumers into demand-gated streams.
package saramarx

import (
	"context"
	"io"

	"github.com/Shopify/sarama"
	"github.com/gokit/errors"
	"github.com/gokit/rxkit"
)

// PartitionConsumer is the part of a sarama.PartitionConsumer a stream
// reads from.
type PartitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// Config configures streams created by this package.
type Config struct {
	// FailOnError fails the stream with the first consumer error, by default
	// consumer errors are logged and consumption continues.
	FailOnError bool

	// Logs receives consumer diagnostics, defaults to rxkit.CurrentLogs.
	Logs rxkit.Logs
}

func (c *Config) init() {
	if c.Logs == nil {
		c.Logs = rxkit.CurrentLogs()
	}
}

// ConsumePartition returns a stream of the messages of a topic partition,
// starting at offset, which may be sarama.OffsetOldest or
// sarama.OffsetNewest. Every run consumes the partition from offset and
// closes it's partition consumer when the run ends.
func ConsumePartition(consumer sarama.Consumer, topic string, partition int32, offset int64, config Config) rxkit.Stream[*sarama.ConsumerMessage] {
	return Stream(func() (PartitionConsumer, error) {
		pc, err := consumer.ConsumePartition(topic, partition, offset)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to consume partition %d of topic %q", partition, topic)
		}
		return pc, nil
	}, config)
}

// Stream returns a stream reading the PartitionConsumer returned by open,
// which is called once per run. Messages are only received from the
// consumer while there is outstanding demand.
func Stream(open func() (PartitionConsumer, error), config Config) rxkit.Stream[*sarama.ConsumerMessage] {
	config.init()

	return rxkit.Using(open, func(pc PartitionConsumer) rxkit.Stream[*sarama.ConsumerMessage] {
		return rxkit.Pull(func(ctx context.Context) (*sarama.ConsumerMessage, error) {
			return next(ctx, pc, config)
		})
	}, func(pc PartitionConsumer) {
		if err := pc.Close(); err != nil {
			err = errors.Wrap(err, "Failed to close partition consumer")
			rxkit.LogMsgWithContext(err.Error(), "context", nil).
				Write(rxkit.ERROR, config.Logs)
		}
	})
}

func next(ctx context.Context, pc PartitionConsumer, config Config) (*sarama.ConsumerMessage, error) {
	messages := pc.Messages()
	errs := pc.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil, io.EOF
			}
			return msg, nil
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if config.FailOnError {
				return nil, cerr
			}
			rxkit.LogMsgWithContext("Consumer error", "context", func(event *rxkit.LogEvent) {
				event.String("topic", cerr.Topic).Int("partition", int(cerr.Partition))
			}).Err("error", cerr.Err).Write(rxkit.ERROR, config.Logs)
		}
	}
}
